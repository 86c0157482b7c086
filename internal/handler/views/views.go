// Package views renders the HTML pages and htmx fragments of the web UI.
package views

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/mkkukul/Elif-Hoca/internal/analysis"
	"github.com/mkkukul/Elif-Hoca/internal/dashboard"
	"github.com/mkkukul/Elif-Hoca/internal/i18n"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("views").Funcs(template.FuncMap{
	"num":     dashboard.Format,
	"compact": dashboard.Compact,
	"inc":     func(i int) int { return i + 1 },
	"trend":   func(t *model.TopicTrend) string { return dashboard.TrendLabel(*t) },
	"tabs":    func() []dashboard.Tab { return dashboard.Tabs },
}).ParseFS(templateFS, "templates/*.html"))

// page is the value every template executes against.
type page struct {
	ctx  context.Context
	Data any
}

func (p page) T(id string) string { return i18n.T(p.ctx, id) }

func (p page) Tp(id string, n int) string { return i18n.Tp(p.ctx, id, n) }

// ErrorMessage returns the user-facing text of an analysis error kind.
func (p page) ErrorMessage(kind string) string {
	return i18n.Td(p.ctx, "Error_"+kind, map[string]any{"MaxMegapixels": analysis.MaxDecodeMegapixels})
}

func (p page) Path(s string) string { return model.BasePathFromContext(p.ctx) + s }

func (p page) CSRF() string { return model.CSRFTokenFromContext(p.ctx) }

// With rebinds the page to nested data for a sub-template.
func (p page) With(data any) page { return page{ctx: p.ctx, Data: data} }

func component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return templates.ExecuteTemplate(w, name, page{ctx: ctx, Data: data})
	})
}

type layoutData struct {
	Body       template.HTML
	ShowLogout bool
}

// Layout wraps body in the full HTML document.
func Layout(body templ.Component, showLogout bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := body.Render(ctx, &buf); err != nil {
			return err
		}
		return templates.ExecuteTemplate(w, "layout", page{ctx: ctx, Data: layoutData{
			Body:       template.HTML(buf.String()),
			ShowLogout: showLogout,
		}})
	})
}

// ChatLine is one rendered transcript entry.
type ChatLine struct {
	User bool
	Text string        // user text, escaped by the template
	HTML template.HTML // sanitized model reply
}

// NewChatLines renders a transcript for display.
func NewChatLines(msgs []model.ChatMessage) []ChatLine {
	lines := make([]ChatLine, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			lines = append(lines, ChatLine{User: true, Text: m.Text})
			continue
		}
		lines = append(lines, ChatLine{HTML: template.HTML(dashboard.RenderMarkdown(m.Text))})
	}
	return lines
}

// Chat is the state of the coaching panel.
type Chat struct {
	Lines        []ChatLine
	QuickActions []string
}

// Dashboard is everything the success view renders.
type Dashboard struct {
	View dashboard.View
	Chat Chat
}

// SummaryHTML returns the summary fragment, already sanitized by dashboard.Build.
func (d Dashboard) SummaryHTML() template.HTML {
	return template.HTML(d.View.SummaryHTML)
}

type stateData struct {
	State     model.ViewState
	Dashboard *Dashboard
}

// State renders the panel for the current view state. dash is used only in success.
func State(st model.ViewState, dash *Dashboard) templ.Component {
	return component("state", stateData{State: st, Dashboard: dash})
}

// ChatPanel renders the coaching transcript with its input form.
func ChatPanel(c Chat) templ.Component {
	return component("chat", c)
}

// LoginPage renders the access password form.
func LoginPage(errMsg string) templ.Component {
	return Layout(component("login", errMsg), false)
}
