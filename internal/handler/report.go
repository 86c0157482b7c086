package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkkukul/Elif-Hoca/internal/dashboard"
	appI18n "github.com/mkkukul/Elif-Hoca/internal/i18n"
	"github.com/mkkukul/Elif-Hoca/internal/model"
	"github.com/mkkukul/Elif-Hoca/internal/report"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok", "llm_configured": h.analyzer.Configured()}
	if err := h.store.Ping(); err != nil {
		slog.Error("database health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}

// analysisOr404 loads the analysis of the session, writing 404 when there is none.
func (h *Handler) analysisOr404(w http.ResponseWriter, r *http.Request) *model.Analysis {
	a, err := h.currentAnalysis(r)
	if err != nil {
		slog.Error("failed to load analysis", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil
	}
	if a == nil {
		http.NotFound(w, r)
		return nil
	}
	return a
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		slog.Debug("failed to write chart", "error", err)
	}
}

func (h *Handler) handleNetChart(w http.ResponseWriter, r *http.Request) {
	a := h.analysisOr404(w, r)
	if a == nil {
		return
	}
	data, err := report.NetChartPNG(a.Result.LatestExam(), report.ChartWidth, report.ChartHeight)
	if err != nil {
		slog.Error("failed to render net chart", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writePNG(w, data)
}

func (h *Handler) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	a := h.analysisOr404(w, r)
	if a == nil {
		return
	}
	v := dashboard.Build(a.Result, string(dashboard.TabTrends), chi.URLParam(r, "index"))
	data, err := report.TrendChartPNG(v.SelectedTrend, report.ChartWidth, report.ChartHeight)
	if err != nil {
		slog.Error("failed to render trend chart", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writePNG(w, data)
}

func (h *Handler) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	a := h.analysisOr404(w, r)
	if a == nil {
		return
	}
	ctx := r.Context()
	data, err := report.PDF(dashboard.Build(a.Result, "", ""), func(id string) string { return appI18n.T(ctx, id) })
	if err != nil {
		slog.Error("failed to render PDF report", "analysis", a.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="elif-hoca-rapor.pdf"`)
	if _, err := w.Write(data); err != nil {
		slog.Debug("failed to write PDF", "error", err)
	}
}

func (h *Handler) handleAnalysisJSON(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	exp, err := h.store.ExportSessionAnalysis(sess.ID)
	if err != nil {
		slog.Error("failed to export analysis", "session", shortID(sess.ID), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if exp == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="elif-hoca-analiz.json"`)
	writeJSON(w, http.StatusOK, exp)
}
