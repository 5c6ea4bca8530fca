package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/locale"
)

//go:embed templates/*.html
var templateFS embed.FS

// devTemplateDir is read on every render when SAASBOARD_DEV=1.
const devTemplateDir = "internal/web/templates"

var pageNames = []string{
	"login",
	"dashboard",
	"inventory",
	"sales",
	"accounting",
	"accounting_advanced",
	"admin_tenants",
	"upgrade",
	"denied",
	"error",
}

// pageData is the value every template receives.
type pageData struct {
	Locale   string
	Dir      string
	Title    string
	User     *auth.TenantContext
	Features map[string]bool
	Content  any
}

// pageRenderer renders a page inside the shared layout.
type pageRenderer struct {
	dev bool

	mu    sync.Mutex
	pages map[string]*template.Template
}

func newPageRenderer() *pageRenderer {
	return &pageRenderer{dev: os.Getenv("SAASBOARD_DEV") == "1"}
}

func (p *pageRenderer) lookup(name string) (*template.Template, error) {
	if p.dev {
		return parsePage(os.DirFS(devTemplateDir), name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pages == nil {
		p.pages = make(map[string]*template.Template, len(pageNames))
		sub, err := fs.Sub(templateFS, "templates")
		if err != nil {
			return nil, err
		}
		for _, n := range pageNames {
			t, err := parsePage(sub, n)
			if err != nil {
				return nil, err
			}
			p.pages[n] = t
		}
	}
	t, ok := p.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	return t, nil
}

func parsePage(fsys fs.FS, name string) (*template.Template, error) {
	t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(fsys, "layout.html", name+".html")
	if err != nil {
		return nil, fmt.Errorf("parsing page %s: %w", name, err)
	}
	return t, nil
}

// render writes page name with status. The locale, direction and the
// caller's identity are filled in from the request context.
func (p *pageRenderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if data.Locale == "" {
		data.Locale = locale.FromContext(r.Context())
	}
	if data.Locale == "" {
		data.Locale = "en"
	}
	data.Dir = locale.Dir(data.Locale)
	if data.User == nil {
		if tc, ok := auth.TenantFromContext(r.Context()); ok {
			data.User = &tc
		}
	}
	if data.Title == "" {
		data.Title = translate(data.Locale, "title."+name)
	}

	t, err := p.lookup(name)
	if err != nil {
		slog.Error("loading template", "page", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("rendering template", "page", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

var templateFuncs = template.FuncMap{
	"t":     translate,
	"money": formatMoney,
	"path":  locale.Path,
	"has": func(features map[string]bool, key string) bool {
		return features[key]
	},
}

// formatMoney renders an amount in minor units with two decimals.
func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// translate looks key up in the catalogue for code, falling back to English
// and then to the key itself.
func translate(code, key string) string {
	base, _, _ := strings.Cut(code, "-")
	if m, ok := messages[base]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := messages["en"][key]; ok {
		return s
	}
	return key
}

var messages = map[string]map[string]string{
	"en": {
		"app.name":                    "SaaSBoard",
		"title.login":                 "Sign in",
		"title.dashboard":             "Dashboard",
		"title.inventory":             "Inventory",
		"title.sales":                 "Sales",
		"title.accounting":            "Accounting",
		"title.accounting_advanced":   "Advanced accounting",
		"title.admin_tenants":         "Tenants",
		"title.upgrade":               "Upgrade your plan",
		"title.denied":                "Access denied",
		"title.error":                 "Something went wrong",
		"nav.logout":                  "Sign out",
		"login.email":                 "Email",
		"login.password":              "Password",
		"login.submit":                "Sign in",
		"login.failed":                "Invalid email or password.",
		"login.throttled":             "Too many attempts. Try again shortly.",
		"dashboard.plan":              "Current plan",
		"dashboard.valuation":         "Stock value",
		"dashboard.revenue":           "Revenue this month",
		"inventory.sku":               "SKU",
		"inventory.name":              "Product",
		"inventory.quantity":          "Quantity",
		"inventory.price":             "Unit price",
		"inventory.low":               "Low stock",
		"sales.product":               "Product",
		"sales.quantity":              "Quantity",
		"sales.total":                 "Total",
		"sales.date":                  "Date",
		"accounting.revenue":          "Revenue",
		"accounting.count":            "Sales",
		"accounting.units":            "Units sold",
		"accounting.average":          "Average sale",
		"accounting.month":            "Month",
		"accounting.top":              "Top products",
		"tenants.name":                "Name",
		"tenants.created":             "Created",
		"tenants.users":               "Users",
		"tenants.products":            "Products",
		"tenants.sales":               "Sales",
		"tenants.plan":                "Plan",
		"tenants.status":              "Status",
		"tenants.override":            "Trial override",
		"tenants.none":                "None",
		"upgrade.body":                "Your current plan does not include this feature.",
		"upgrade.no_subscription":     "Your organization has no active subscription.",
		"denied.body":                 "Your role does not allow you to view this page.",
		"error.body":                  "Please try again later.",
		"error.not_found":             "The page you requested does not exist.",
		"feature.dashboard":           "Dashboard",
		"feature.inventory":           "Inventory",
		"feature.sales":               "Sales",
		"feature.accounting":          "Accounting",
		"feature.advanced_accounting": "Advanced accounting",
		"feature.multi_branch":        "Multiple branches",
		"feature.api_access":          "API access",
	},
	"ar": {
		"app.name":                  "ساس بورد",
		"title.login":               "تسجيل الدخول",
		"title.dashboard":           "لوحة التحكم",
		"title.inventory":           "المخزون",
		"title.sales":               "المبيعات",
		"title.accounting":          "المحاسبة",
		"title.accounting_advanced": "المحاسبة المتقدمة",
		"title.admin_tenants":       "المستأجرون",
		"title.upgrade":             "ترقية الخطة",
		"title.denied":              "تم رفض الوصول",
		"title.error":               "حدث خطأ ما",
		"nav.logout":                "تسجيل الخروج",
		"login.email":               "البريد الإلكتروني",
		"login.password":            "كلمة المرور",
		"login.submit":              "دخول",
		"login.failed":              "البريد الإلكتروني أو كلمة المرور غير صحيحة.",
		"login.throttled":           "محاولات كثيرة. حاول مرة أخرى بعد قليل.",
		"dashboard.plan":            "الخطة الحالية",
		"dashboard.valuation":       "قيمة المخزون",
		"dashboard.revenue":         "إيرادات هذا الشهر",
		"inventory.sku":             "رمز المنتج",
		"inventory.name":            "المنتج",
		"inventory.quantity":        "الكمية",
		"inventory.price":           "سعر الوحدة",
		"inventory.low":             "مخزون منخفض",
		"sales.product":             "المنتج",
		"sales.quantity":            "الكمية",
		"sales.total":               "الإجمالي",
		"sales.date":                "التاريخ",
		"accounting.revenue":        "الإيرادات",
		"accounting.count":          "عدد المبيعات",
		"accounting.units":          "الوحدات المباعة",
		"accounting.average":        "متوسط البيع",
		"accounting.month":          "الشهر",
		"accounting.top":            "أفضل المنتجات",
		"tenants.name":              "الاسم",
		"tenants.created":           "تاريخ الإنشاء",
		"tenants.users":             "المستخدمون",
		"tenants.products":          "المنتجات",
		"tenants.sales":             "المبيعات",
		"tenants.plan":              "الخطة",
		"tenants.status":            "الحالة",
		"tenants.override":          "تجربة ممنوحة",
		"tenants.none":              "لا يوجد",
		"upgrade.body":              "خطتك الحالية لا تتضمن هذه الميزة.",
		"upgrade.no_subscription":   "لا يوجد اشتراك نشط لمؤسستك.",
		"denied.body":               "دورك لا يسمح لك بعرض هذه الصفحة.",
		"error.body":                "يرجى المحاولة لاحقًا.",
		"error.not_found":           "الصفحة المطلوبة غير موجودة.",
	},
}
