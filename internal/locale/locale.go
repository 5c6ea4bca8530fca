// Package locale picks the display language for a request and keeps the
// locale prefix on dashboard URLs consistent.
package locale

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
)

// CookieName holds the last locale a visitor used.
const CookieName = "locale"

type contextKey struct{}

// ContextWith returns a copy of ctx carrying code.
func ContextWith(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, contextKey{}, code)
}

// FromContext returns the locale stored by Middleware, or "".
func FromContext(ctx context.Context) string {
	code, _ := ctx.Value(contextKey{}).(string)
	return code
}

var rtlScripts = map[string]bool{"Arab": true, "Hebr": true, "Syrc": true, "Thaa": true}

// Resolver matches requests against a fixed set of supported locales.
type Resolver struct {
	codes   []string
	tags    []language.Tag
	def     string
	matcher language.Matcher
}

// New builds a Resolver. def must be one of supported.
func New(def string, supported []string) (*Resolver, error) {
	if len(supported) == 0 {
		return nil, fmt.Errorf("locale: no supported locales")
	}
	r := &Resolver{def: def}
	defIdx := -1
	for i, code := range supported {
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("locale: parsing %q: %w", code, err)
		}
		r.codes = append(r.codes, code)
		r.tags = append(r.tags, tag)
		if code == def {
			defIdx = i
		}
	}
	if defIdx < 0 {
		return nil, fmt.Errorf("locale: default %q is not supported", def)
	}
	// The matcher falls back to its first tag, so put the default there.
	ordered := append([]language.Tag{r.tags[defIdx]}, r.tags[:defIdx]...)
	ordered = append(ordered, r.tags[defIdx+1:]...)
	r.matcher = language.NewMatcher(ordered)
	return r, nil
}

// Default returns the fallback locale.
func (r *Resolver) Default() string { return r.def }

// IsSupported reports whether code is one of the configured locales.
func (r *Resolver) IsSupported(code string) bool {
	for _, c := range r.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Resolve picks a locale from, in order, the first URL path segment, the
// locale cookie and the Accept-Language header.
func (r *Resolver) Resolve(req *http.Request) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if r.IsSupported(seg) {
		return seg
	}
	if c, err := req.Cookie(CookieName); err == nil && r.IsSupported(c.Value) {
		return c.Value
	}
	if h := req.Header.Get("Accept-Language"); h != "" {
		return r.Match(h)
	}
	return r.def
}

// Match returns the supported locale that best fits an Accept-Language value.
func (r *Resolver) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return r.def
	}
	_, idx, conf := r.matcher.Match(tags...)
	if conf == language.No {
		return r.def
	}
	// idx indexes the reordered matcher list.
	return r.orderedCode(idx)
}

func (r *Resolver) orderedCode(idx int) string {
	if idx == 0 {
		return r.def
	}
	n := 0
	for _, c := range r.codes {
		if c == r.def {
			continue
		}
		n++
		if n == idx {
			return c
		}
	}
	return r.def
}

// Dir returns "rtl" for right-to-left locales and "ltr" otherwise.
func Dir(code string) string {
	script, _ := language.Make(code).Script()
	if rtlScripts[script.String()] {
		return "rtl"
	}
	return "ltr"
}

// Middleware validates the {locale} route parameter. A supported value is
// stored in the request context and remembered in a cookie; anything else is
// treated as part of the path and redirected under the resolved locale.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "locale")
		if !r.IsSupported(code) {
			rest := req.URL.Path
			// A bare language code we do not serve is replaced, not nested.
			if len(code) == 2 {
				if _, err := language.ParseBase(code); err == nil {
					rest = strings.TrimPrefix(rest, "/"+code)
				}
			}
			target := "/" + r.Resolve(req) + rest
			if req.URL.RawQuery != "" {
				target += "?" + req.URL.RawQuery
			}
			http.Redirect(w, req, target, http.StatusTemporaryRedirect)
			return
		}
		if c, err := req.Cookie(CookieName); err != nil || c.Value != code {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    code,
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, req.WithContext(ContextWith(req.Context(), code)))
	})
}

// Path joins a locale and a path below it.
func Path(code, p string) string {
	return "/" + code + "/" + strings.TrimPrefix(p, "/")
}
