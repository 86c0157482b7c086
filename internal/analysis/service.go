package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkkukul/Elif-Hoca/internal/cache"
	"github.com/mkkukul/Elif-Hoca/internal/llm"
	"github.com/mkkukul/Elif-Hoca/internal/metrics"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Upload is a file selected by the student.
type Upload struct {
	FileName string
	Data     []byte
}

// Options configures a Service.
type Options struct {
	MaxImagePx int
	Timeout    time.Duration // per background analysis; 0 means none
}

// Service runs report analyses against a provider.
type Service struct {
	provider llm.Provider // nil when no credential is configured
	cache    *cache.AnalysisCache
	metrics  *metrics.Service
	opts     Options

	wg sync.WaitGroup
}

// NewService creates an analysis service. provider, c and m may be nil.
func NewService(provider llm.Provider, c *cache.AnalysisCache, m *metrics.Service, opts Options) *Service {
	return &Service{provider: provider, cache: c, metrics: m, opts: opts}
}

// Configured reports whether a provider is available.
func (s *Service) Configured() bool {
	return s.provider != nil
}

// Analyze runs one analysis synchronously: a single model call, no retries.
func (s *Service) Analyze(ctx context.Context, up Upload) (*model.Analysis, error) {
	start := time.Now()
	a, err := s.analyze(ctx, up)

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		slog.Warn("analysis failed", "file", up.FileName, "kind", outcome, "error", err)
	} else {
		slog.Info("analysis completed", "file", up.FileName, "id", a.ID,
			"exams", len(a.Result.Exams), "topics", len(a.Result.Topics), "duration", time.Since(start))
	}
	s.metrics.ObserveAnalysis(outcome, time.Since(start))
	return a, err
}

func (s *Service) analyze(ctx context.Context, up Upload) (*model.Analysis, error) {
	if s.provider == nil {
		return nil, newError(KindConfig, llm.ErrMissingAPIKey)
	}

	doc, err := Prepare(up.Data, s.opts.MaxImagePx)
	if err != nil {
		return nil, err
	}

	hash := HashBytes(up.Data)
	newAnalysis := func(result *model.AnalysisResult) *model.Analysis {
		return &model.Analysis{
			ID:        uuid.NewString(),
			FileHash:  hash,
			FileName:  up.FileName,
			MIMEType:  doc.MIMEType,
			Result:    result,
			CreatedAt: time.Now().UTC(),
		}
	}

	if cached, err := s.cache.Get(ctx, hash); err == nil {
		if verr := Validate(cached); verr == nil {
			s.metrics.RecordCacheLookup(true)
			slog.Debug("analysis cache hit", "hash", hash)
			return newAnalysis(cached), nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		slog.Warn("analysis cache lookup failed", "error", err)
	}
	if s.cache.Enabled() {
		s.metrics.RecordCacheLookup(false)
	}

	raw, err := s.provider.Analyze(ctx, doc)
	if err != nil {
		if k := KindOf(err); k != KindUpstream {
			return nil, newError(k, err)
		}
		return nil, newError(KindUpstream, fmt.Errorf("analysis request: %w", err))
	}

	result, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, hash, result); err != nil {
		slog.Warn("analysis cache store failed", "error", err)
	}
	return newAnalysis(result), nil
}

// Submit runs the analysis in a background goroutine and calls done with its outcome.
// The goroutine is detached from any request context.
func (s *Service) Submit(up Upload, done func(*model.Analysis, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := context.Background()
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
		}

		a, err := s.Analyze(ctx, up)
		done(a, err)
	}()
}

// Wait blocks until all submitted analyses have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// HashBytes returns the hex-encoded SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
