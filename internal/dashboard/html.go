package dashboard

import (
	"bytes"
	"html"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	// summaryPolicy allows the formatting the analysis instruction asks the model to use.
	summaryPolicy = newSummaryPolicy()
	// replyPolicy covers what Markdown renders to.
	replyPolicy = bluemonday.UGCPolicy()

	plainPolicy = bluemonday.StrictPolicy()

	markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Table, extension.Linkify))
)

func newSummaryPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "br", "p", "ul", "ol", "li", "span", "mark", "small")
	return p
}

// SanitizeHTML strips everything but basic formatting from a model-provided HTML fragment.
func SanitizeHTML(fragment string) string {
	return summaryPolicy.Sanitize(fragment)
}

// PlainText strips all markup from a model-provided HTML fragment.
func PlainText(fragment string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(fragment)))
}

// RenderMarkdown renders a model reply to sanitized HTML. If rendering fails the text is
// returned escaped.
func RenderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		slog.Warn("markdown render failed", "error", err)
		return html.EscapeString(md)
	}
	return replyPolicy.Sanitize(buf.String())
}
