package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkkukul/Elif-Hoca/internal/analysis"
	"github.com/mkkukul/Elif-Hoca/internal/cache"
	"github.com/mkkukul/Elif-Hoca/internal/coach"
	"github.com/mkkukul/Elif-Hoca/internal/dashboard"
	"github.com/mkkukul/Elif-Hoca/internal/handler"
	appI18n "github.com/mkkukul/Elif-Hoca/internal/i18n"
	"github.com/mkkukul/Elif-Hoca/internal/llm"
	"github.com/mkkukul/Elif-Hoca/internal/metrics"
	"github.com/mkkukul/Elif-Hoca/internal/model"
	"github.com/mkkukul/Elif-Hoca/internal/report"
	"github.com/mkkukul/Elif-Hoca/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "elifhoca",
		Short: "Exam report analyzer and study coach",
		PersistentPreRun: func(*cobra.Command, []string) {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
		},
	}

	serve := serveCmd()
	root.AddCommand(serve, analyzeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `elifhoca --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-provider", llm.ProviderGemini, "LLM provider (gemini, openai)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (openai provider only)")
	f.String("llm-key", "", "API key for the LLM provider (or set ELIFHOCA_LLM_KEY)")
	f.String("llm-model", "", "LLM model name (default depends on the provider)")
	f.Float32("llm-temperature", 0.7, "Sampling temperature of coaching chat (analysis always uses 0.1)")
	f.Int("max-image-px", analysis.DefaultMaxImagePx, "Downscale images whose longest side exceeds this")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web application",
		RunE:  runServe,
	}
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", ":memory:", "SQLite database path (:memory: keeps sessions in process)")
	f.StringP("lang", "l", appI18n.DefaultLang, "Default UI language (tr, en)")
	f.Int64("max-upload-mb", 20, "Maximum upload size in megabytes")
	f.Duration("session-ttl", 12*time.Hour, "Browser session lifetime")
	f.String("redis-addr", "", "Redis address for the analysis cache (empty disables caching)")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.Duration("cache-ttl", 24*time.Hour, "Lifetime of cached analyses")
	f.String("access-password", "", "Shared access password (empty disables the login page)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /analiz)")
	f.Duration("analysis-timeout", 0, "Timeout for one background analysis (0 = none)")
	f.Bool("llm-ping", false, "Check the LLM endpoint at startup")
	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze one exam report and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.String("pdf", "", "Also write a PDF report to this path")
	f.StringP("lang", "l", appI18n.DefaultLang, "Language of the PDF report (tr, en)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ELIFHOCA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("elifhoca")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/elifhoca")
	v.AddConfigPath("/etc/elifhoca")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newProvider creates the configured LLM provider. A missing key yields a nil provider so
// the application still starts and reports the configuration error per analysis.
func newProvider(ctx context.Context, v *viper.Viper) (llm.Provider, error) {
	p, err := llm.New(ctx, llm.Config{
		Provider:    v.GetString("llm-provider"),
		BaseURL:     v.GetString("llm-url"),
		APIKey:      v.GetString("llm-key"),
		Model:       v.GetString("llm-model"),
		Temperature: float32(v.GetFloat64("llm-temperature")),
	})
	if errors.Is(err, llm.ErrMissingAPIKey) {
		slog.Warn("no LLM API key configured; analyses will fail until ELIFHOCA_LLM_KEY is set")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	return p, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	provider, err := newProvider(ctx, v)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
		if v.GetBool("llm-ping") {
			if err := provider.Ping(ctx); err != nil {
				return fmt.Errorf("LLM health check: %w", err)
			}
			slog.Info("LLM endpoint OK", "provider", v.GetString("llm-provider"), "model", v.GetString("llm-model"))
		}
	}

	var analysisCache *cache.AnalysisCache
	if addr := v.GetString("redis-addr"); addr != "" {
		client, err := cache.NewRedis(ctx, addr, v.GetString("redis-password"), v.GetInt("redis-db"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		analysisCache = cache.NewAnalysisCache(client, v.GetDuration("cache-ttl"))
		defer analysisCache.Close()
		slog.Info("analysis cache enabled", "redis", addr)
	} else {
		analysisCache = cache.NewAnalysisCache(nil, 0)
	}

	m := metrics.New()
	analyzer := analysis.NewService(provider, analysisCache, m, analysis.Options{
		MaxImagePx: v.GetInt("max-image-px"),
		Timeout:    v.GetDuration("analysis-timeout"),
	})
	coachSvc := coach.NewService(provider, db, m)

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		BasePath:        basePath,
		SecureCookies:   v.GetBool("secure-cookies"),
		MaxUploadBytes:  v.GetInt64("max-upload-mb") << 20,
		SessionTTL:      v.GetDuration("session-ttl"),
		AnalysisTimeout: v.GetDuration("analysis-timeout"),
	}
	if pw := v.GetString("access-password"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash access password: %w", err)
		}
		cfg.PasswordHash = hash
	}

	h, err := handler.New(db, analyzer, coachSvc, m, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	go cleanupSessions(ctx, db, time.Hour)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("llm-provider"),
		"llm_configured", provider != nil,
		"lang", lang,
		"db", v.GetString("db"),
		"cache", analysisCache.Enabled(),
		"access_password", len(cfg.PasswordHash) > 0,
		"base_path", basePath,
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	analyzer.Wait()
	return nil
}

func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	provider, err := newProvider(ctx, v)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
	}

	svc := analysis.NewService(provider, nil, nil, analysis.Options{MaxImagePx: v.GetInt("max-image-px")})
	a, err := svc.Analyze(ctx, analysis.Upload{FileName: filepath.Base(args[0]), Data: data})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(a.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	pdfPath := v.GetString("pdf")
	if pdfPath == "" {
		return nil
	}
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	lctx := appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))
	doc, err := report.PDF(dashboard.Build(a.Result, "", ""), func(id string) string { return appI18n.T(lctx, id) })
	if err != nil {
		return fmt.Errorf("render PDF: %w", err)
	}
	if err := os.WriteFile(pdfPath, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", pdfPath, err)
	}
	slog.Info("wrote PDF report", "path", pdfPath)
	return nil
}
