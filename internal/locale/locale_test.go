package locale

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New("ar", []string{"ar", "en"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("fr", []string{"ar", "en"}); err == nil {
		t.Error("expected error for unsupported default")
	}
	if _, err := New("ar", nil); err == nil {
		t.Error("expected error for empty supported list")
	}
	if _, err := New("ar", []string{"ar", "!!"}); err == nil {
		t.Error("expected error for malformed tag")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		cookie string
		accept string
		want   string
	}{
		{"path prefix wins", "/en/dashboard", "ar", "ar", "en"},
		{"cookie when no prefix", "/dashboard", "en", "ar", "en"},
		{"unsupported cookie ignored", "/dashboard", "fr", "en-US,en;q=0.9", "en"},
		{"accept-language region", "/", "", "en-GB", "en"},
		{"accept-language arabic", "/", "", "ar-EG,en;q=0.5", "ar"},
		{"accept-language unsupported", "/", "", "fr-FR", "ar"},
		{"nothing falls back to default", "/", "", "", "ar"},
	}

	res := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			if got := res.Resolve(r); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatch_DefaultNotFirst(t *testing.T) {
	res, err := New("en", []string{"ar", "en"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := res.Match("ar"); got != "ar" {
		t.Errorf("Match(ar) = %q", got)
	}
	if got := res.Match("de"); got != "en" {
		t.Errorf("Match(de) = %q, want default en", got)
	}
}

func TestDir(t *testing.T) {
	if Dir("ar") != "rtl" {
		t.Error("ar should be rtl")
	}
	if Dir("en") != "ltr" {
		t.Error("en should be ltr")
	}
}

func TestPath(t *testing.T) {
	if got := Path("en", "/upgrade"); got != "/en/upgrade" {
		t.Errorf("Path() = %q", got)
	}
	if got := Path("ar", "dashboard"); got != "/ar/dashboard" {
		t.Errorf("Path() = %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	res := newTestResolver(t)
	router := chi.NewRouter()
	router.Route("/{locale}", func(r chi.Router) {
		r.Use(res.Middleware)
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(FromContext(r.Context())))
		})
	})

	t.Run("supported locale passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en/dashboard", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "en" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
		found := false
		for _, c := range rec.Result().Cookies() {
			if c.Name == CookieName && c.Value == "en" {
				found = true
			}
		}
		if !found {
			t.Error("expected locale cookie to be set")
		}
	})

	t.Run("missing prefix redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard?x=1", nil)
		req.Header.Set("Accept-Language", "en")
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("status = %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/en/dashboard?x=1" {
			t.Errorf("Location = %q", loc)
		}
	})

	t.Run("unsupported language code is replaced", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/fr/dashboard", nil)
		req.Header.Set("Accept-Language", "en")
		router.ServeHTTP(rec, req)
		if loc := rec.Header().Get("Location"); loc != "/en/dashboard" {
			t.Errorf("Location = %q", loc)
		}
	})
}
