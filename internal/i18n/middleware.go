package i18n

import (
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

const langCookie = "lang"

// Middleware injects a localizer into every request context. A ?lang= query parameter
// switches the language for the browser and is remembered in a cookie; otherwise the
// configured lang applies.
func Middleware(lang string) func(http.Handler) http.Handler {
	localizers := map[string]*i18n.Localizer{}
	for _, tag := range bundle.LanguageTags() {
		localizers[tag.String()] = NewLocalizer(tag.String())
	}
	fallback := NewLocalizer(lang)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if q := r.URL.Query().Get("lang"); q != "" {
				if l, ok := localizers[q]; ok {
					loc = l
					http.SetCookie(w, &http.Cookie{Name: langCookie, Value: q, Path: "/", MaxAge: 365 * 24 * 3600, SameSite: http.SameSiteLaxMode})
				}
			} else if c, err := r.Cookie(langCookie); err == nil {
				if l, ok := localizers[c.Value]; ok {
					loc = l
				}
			}
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
