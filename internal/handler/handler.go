package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/mkkukul/Elif-Hoca/internal/analysis"
	"github.com/mkkukul/Elif-Hoca/internal/coach"
	"github.com/mkkukul/Elif-Hoca/internal/dashboard"
	"github.com/mkkukul/Elif-Hoca/internal/handler/views"
	"github.com/mkkukul/Elif-Hoca/internal/llm/prompts"
	"github.com/mkkukul/Elif-Hoca/internal/metrics"
	"github.com/mkkukul/Elif-Hoca/internal/model"
	"github.com/mkkukul/Elif-Hoca/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	analyzer *analysis.Service
	coach    *coach.Service
	metrics  *metrics.Service
	config   model.AppConfig
}

// New creates a new Handler. m may be nil.
func New(s *store.Store, a *analysis.Service, c *coach.Service, m *metrics.Service, cfg model.AppConfig) (*Handler, error) {
	if s == nil || a == nil || c == nil {
		return nil, errors.New("handler: store, analyzer and coach are required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	return &Handler{store: s, analyzer: a, coach: c, metrics: m, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.metrics.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", h.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Use(h.csrfMiddleware)

		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAccess)

			r.Get("/", h.handleIndex)
			r.Get("/status", h.handleIndex)
			r.Post("/analyze", h.handleAnalyze)
			r.Post("/reset", h.handleReset)
			r.Get("/dashboard", h.handleDashboard)
			r.Post("/chat", h.handleChat)
			r.Get("/chart/nets.png", h.handleNetChart)
			r.Get("/chart/trend/{index}.png", h.handleTrendChart)
			r.Get("/report.pdf", h.handleReportPDF)
			r.Get("/analysis.json", h.handleAnalysisJSON)
		})
	})
}

// path prefixes an absolute application path with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

// BasePathMiddleware stores the base path in the request context for views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// renderState renders the panel for the session's current state: a fragment for htmx
// requests, the full page otherwise.
func (h *Handler) renderState(w http.ResponseWriter, r *http.Request, status int, st model.ViewState, tab, trend string) {
	var dash *views.Dashboard
	if st.Status == model.StatusSuccess {
		d, err := h.buildDashboard(r, st, tab, trend)
		if err != nil {
			slog.Error("failed to build dashboard", "analysis", st.AnalysisID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		dash = d
	}

	c := views.State(st, dash)
	if !isHTMX(r) {
		c = views.Layout(c, len(h.config.PasswordHash) > 0)
	}
	h.render(w, r, status, c)
}

func (h *Handler) buildDashboard(r *http.Request, st model.ViewState, tab, trend string) (*views.Dashboard, error) {
	sess := model.SessionFromContext(r.Context())
	a, err := h.store.GetAnalysis(st.AnalysisID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("analysis %s not found", st.AnalysisID)
	}
	// Seed is idempotent and covers a poll that lands between commit and seeding.
	msgs, err := h.coach.Seed(sess.ID, a)
	if err != nil {
		return nil, err
	}
	return &views.Dashboard{
		View: dashboard.Build(a.Result, tab, trend),
		Chat: views.Chat{Lines: views.NewChatLines(msgs), QuickActions: prompts.QuickActions},
	}, nil
}

// currentAnalysis returns the analysis shown in the session, or nil outside the success state.
func (h *Handler) currentAnalysis(r *http.Request) (*model.Analysis, error) {
	sess := model.SessionFromContext(r.Context())
	if sess.State.Status != model.StatusSuccess {
		return nil, nil
	}
	return h.store.GetAnalysis(sess.State.AnalysisID)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	h.renderState(w, r, http.StatusOK, sess.State, "", "")
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	h.renderState(w, r, http.StatusOK, sess.State, r.URL.Query().Get("tab"), r.URL.Query().Get("trend"))
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())

	up, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	st, err := h.store.UpdateSessionState(sess.ID, model.ViewState.Start)
	switch {
	case errors.Is(err, model.ErrBusy), errors.Is(err, model.ErrInvalidTransition):
		h.respondState(w, r, http.StatusConflict, st)
		return
	case err != nil:
		slog.Error("failed to start analysis", "session", shortID(sess.ID), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("analysis started", "session", shortID(sess.ID), "file", up.FileName, "bytes", len(up.Data))
	h.analyzer.Submit(up, h.finishAnalysis(sess.ID, st.Attempt))
	h.respondState(w, r, http.StatusAccepted, st)
}

// respondState answers a state-changing POST: the new panel for htmx, a redirect otherwise.
func (h *Handler) respondState(w http.ResponseWriter, r *http.Request, status int, st model.ViewState) {
	if !isHTMX(r) {
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}
	h.renderState(w, r, status, st, "", "")
}

// finishAnalysis stores the outcome of a background analysis. Outcomes of attempts that
// were reset in the meantime are dropped without writing anything.
func (h *Handler) finishAnalysis(sessionID, attempt string) func(*model.Analysis, error) {
	return func(a *model.Analysis, err error) {
		if err != nil {
			_, uerr := h.store.UpdateSessionState(sessionID, func(cur model.ViewState) (model.ViewState, error) {
				if err := cur.Current(attempt); err != nil {
					return cur, err
				}
				return cur.Fail(string(analysis.KindOf(err)), analysis.Detail(err))
			})
			h.logFinish(sessionID, uerr)
			return
		}

		_, err = h.store.SaveAnalysisWithState(sessionID, a, func(cur model.ViewState) (model.ViewState, error) {
			if err := cur.Current(attempt); err != nil {
				return cur, err
			}
			return cur.Succeed(a.ID)
		})
		if err != nil && !errors.Is(err, model.ErrStale) && !errors.Is(err, store.ErrSessionNotFound) {
			slog.Error("failed to save analysis", "session", shortID(sessionID), "error", err)
			_, uerr := h.store.UpdateSessionState(sessionID, func(cur model.ViewState) (model.ViewState, error) {
				if err := cur.Current(attempt); err != nil {
					return cur, err
				}
				return cur.Fail(string(analysis.KindInternal), err.Error())
			})
			h.logFinish(sessionID, uerr)
			return
		}
		h.logFinish(sessionID, err)
		if err != nil {
			return
		}
		if _, err := h.coach.Seed(sessionID, a); err != nil {
			slog.Error("failed to seed transcript", "session", shortID(sessionID), "error", err)
		}
	}
}

func (h *Handler) logFinish(sessionID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, model.ErrStale), errors.Is(err, store.ErrSessionNotFound):
		slog.Debug("discarded analysis outcome", "session", shortID(sessionID), "reason", err)
	default:
		slog.Error("failed to record analysis outcome", "session", shortID(sessionID), "error", err)
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	st, err := h.store.UpdateSessionState(sess.ID, func(cur model.ViewState) (model.ViewState, error) {
		return cur.Reset(), nil
	})
	if err != nil {
		slog.Error("failed to reset session", "session", shortID(sess.ID), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.respondState(w, r, http.StatusOK, st)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	a, err := h.currentAnalysis(r)
	if err != nil {
		slog.Error("failed to load analysis", "session", shortID(sess.ID), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.Error(w, "no analysis", http.StatusConflict)
		return
	}

	msgs, err := h.coach.Send(r.Context(), sess.ID, a, r.FormValue("message"))
	if err != nil {
		slog.Error("chat failed", "session", shortID(sess.ID), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, h.path("/dashboard?tab=coach"), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, views.ChatPanel(views.Chat{
		Lines:        views.NewChatLines(msgs),
		QuickActions: prompts.QuickActions,
	}))
}

// readUpload reads the single file of a multipart upload.
func readUpload(r *http.Request) (analysis.Upload, error) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return analysis.Upload{}, err
		}
		return analysis.Upload{}, fmt.Errorf("file is required: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return analysis.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return analysis.Upload{}, errors.New("file is empty")
	}
	return analysis.Upload{FileName: hdr.Filename, Data: data}, nil
}

// shortID shortens a session token for logs.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
