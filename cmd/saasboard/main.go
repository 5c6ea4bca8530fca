package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "saasboard",
	Short: "SaaSBoard multi-tenant business dashboard",
	Long:  "SaaSBoard serves a localized inventory, sales and accounting dashboard to many tenants, gating every page by the caller's role and their tenant's subscription plan.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus SAASBOARD_* env)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
