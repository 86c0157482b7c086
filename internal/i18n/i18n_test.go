package i18n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateTurkish(t *testing.T) {
	ctx := initLang(t, "tr")

	tests := map[string]string{
		"TotalNet":    "Toplam Net",
		"Score":       "Puan",
		"NewUpload":   "Yeni Belge Yükle",
		"RetryButton": "Tekrar Dene",
		"TopicDetail": "Detaylı Konu Analizi",
	}
	for id, want := range tests {
		if got := T(ctx, id); got != want {
			t.Errorf("T(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "TotalNet"); got != "Total Net" {
		t.Errorf("T(TotalNet) = %q, want 'Total Net'", got)
	}
}

func TestDefaultLocalizer(t *testing.T) {
	initLang(t, "tr")

	// No localizer in the context falls back to the configured language.
	if got := T(context.Background(), "Score"); got != "Puan" {
		t.Errorf("T(Score) = %q, want 'Puan'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "TopicsReviewed", 1); got != "1 topic reviewed" {
		t.Errorf("Tp(TopicsReviewed, 1) = %q", got)
	}
	if got := Tp(ctx, "TopicsReviewed", 5); got != "5 topics reviewed" {
		t.Errorf("Tp(TopicsReviewed, 5) = %q", got)
	}

	ctx = initLang(t, "tr")
	if got := Tp(ctx, "TopicsReviewed", 12); got != "12 Konu İncelendi" {
		t.Errorf("Tp(TopicsReviewed, 12) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "tr")

	got := Td(ctx, "Error_too_large", map[string]any{"MaxMegapixels": 50})
	if got != "Görsel çok büyük. En fazla 50 megapiksel olabilir." {
		t.Errorf("Td(Error_too_large) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "tr")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	keys := func(name string) map[string]bool {
		t.Helper()
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			t.Fatal(err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		out := map[string]bool{}
		for k := range m {
			out[k] = true
		}
		return out
	}

	tr, en := keys("tr.json"), keys("en.json")
	for k := range tr {
		if !en[k] {
			t.Errorf("en.json is missing %q", k)
		}
	}
	for k := range en {
		if !tr[k] {
			t.Errorf("tr.json is missing %q", k)
		}
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "tr")

	h := Middleware("tr")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(T(r.Context(), "Score")))
	}))

	tests := []struct {
		name   string
		url    string
		cookie string
		want   string
	}{
		{"configured language", "/", "", "Puan"},
		{"query switch", "/?lang=en", "", "Score"},
		{"cookie", "/", "en", "Score"},
		{"unknown language", "/?lang=xx", "", "Puan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: langCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}
