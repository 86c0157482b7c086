package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSession(t *testing.T, s *Store) *model.BrowserSession {
	t.Helper()
	sess, err := s.CreateSession(time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func testAnalysis() *model.Analysis {
	return &model.Analysis{
		FileHash: "abc123",
		FileName: "karne.jpg",
		MIMEType: "image/jpeg",
		Result: &model.AnalysisResult{
			Student: &model.StudentInfo{FullName: "Ayşe Yılmaz"},
			Exams: []model.ExamRecord{{
				Name:       "TYT Deneme 1",
				TotalScore: 78.5,
				Percentile: 12.3,
				Nets:       []model.LessonNet{{Subject: "TYT Matematik", Net: 22.5}},
			}},
		},
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	if len(sess.ID) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(sess.ID))
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.State.Status != model.StatusIdle {
		t.Errorf("expected idle, got %q", got.State.Status)
	}
	if got.Authorized {
		t.Error("new session should not be authorized")
	}

	if err := s.SetSessionAuthorized(sess.ID, true); err != nil {
		t.Fatalf("SetSessionAuthorized: %v", err)
	}
	got, _ = s.GetSession(sess.ID)
	if !got.Authorized {
		t.Error("session should be authorized")
	}

	// Unknown token.
	missing, err := s.GetSession("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown session, got %v, %v", missing, err)
	}
}

func TestUpdateSessionState(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	st, err := s.UpdateSessionState(sess.ID, model.ViewState.Start)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.Status != model.StatusAnalyzing {
		t.Fatalf("expected analyzing, got %q", st.Status)
	}

	// A second start is rejected and leaves the stored state untouched.
	if _, err := s.UpdateSessionState(sess.ID, model.ViewState.Start); !errors.Is(err, model.ErrBusy) {
		t.Errorf("second Start error = %v, want ErrBusy", err)
	}

	st, err = s.UpdateSessionState(sess.ID, func(v model.ViewState) (model.ViewState, error) {
		return v.Fail("schema", "exams_history missing")
	})
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, _ := s.GetSession(sess.ID)
	if got.State != st || got.State.ErrKind != "schema" {
		t.Errorf("stored state = %+v, want %+v", got.State, st)
	}

	if _, err := s.UpdateSessionState("nope", model.ViewState.Start); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want ErrSessionNotFound", err)
	}
}

func TestConcurrentStartAdmitsOne(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.UpdateSessionState(sess.ID, model.ViewState.Start); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Errorf("expected exactly one start to succeed, got %d", started)
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	a := testAnalysis()
	if err := s.SaveAnalysis(sess.ID, a); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if a.ID == "" {
		t.Fatal("SaveAnalysis should assign an ID")
	}

	got, err := s.GetAnalysis(a.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.FileHash != "abc123" || got.MIMEType != "image/jpeg" {
		t.Errorf("unexpected metadata: %+v", got)
	}
	if got.Result.LatestExam().Nets[0].Net != 22.5 {
		t.Errorf("expected net 22.5, got %v", got.Result.LatestExam().Nets[0].Net)
	}

	missing, err := s.GetAnalysis("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown analysis, got %v, %v", missing, err)
	}
}

func TestChatTranscriptIsOrdered(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	texts := []string{"Merhaba!", "Matematikte ne yapmalıyım?", "Problem çöz."}
	roles := []model.Role{model.RoleModel, model.RoleUser, model.RoleModel}
	for i, text := range texts {
		msg := &model.ChatMessage{SessionID: sess.ID, AnalysisID: "a1", Role: roles[i], Text: text}
		if err := s.AppendChatMessage(msg); err != nil {
			t.Fatalf("AppendChatMessage: %v", err)
		}
		if msg.Seq != i+1 {
			t.Errorf("message %d seq = %d", i, msg.Seq)
		}
	}

	// Another analysis of the same session keeps its own transcript.
	if err := s.AppendChatMessage(&model.ChatMessage{SessionID: sess.ID, AnalysisID: "a2", Role: model.RoleModel, Text: "x"}); err != nil {
		t.Fatalf("AppendChatMessage: %v", err)
	}

	msgs, err := s.ListChatMessages(sess.ID, "a1")
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(msgs))
	}
	for i, m := range msgs {
		if m.Text != texts[i] || m.Role != roles[i] {
			t.Errorf("message %d = %s %q", i, m.Role, m.Text)
		}
	}
}

func TestExportSessionAnalysis(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	exp, err := s.ExportSessionAnalysis(sess.ID)
	if err != nil || exp != nil {
		t.Fatalf("idle session export = %v, %v; want nil, nil", exp, err)
	}

	a := testAnalysis()
	if err := s.SaveAnalysis(sess.ID, a); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if _, err := s.UpdateSessionState(sess.ID, model.ViewState.Start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.UpdateSessionState(sess.ID, func(v model.ViewState) (model.ViewState, error) {
		return v.Succeed(a.ID)
	}); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if err := s.AppendChatMessage(&model.ChatMessage{SessionID: sess.ID, AnalysisID: a.ID, Role: model.RoleModel, Text: "Merhaba Ayşe!"}); err != nil {
		t.Fatalf("AppendChatMessage: %v", err)
	}

	exp, err = s.ExportSessionAnalysis(sess.ID)
	if err != nil {
		t.Fatalf("ExportSessionAnalysis: %v", err)
	}
	if exp.SchemaVersion != model.ContractVersion {
		t.Errorf("schema version = %d", exp.SchemaVersion)
	}
	if len(exp.Transcript) != 1 || exp.Transcript[0].Text != "Merhaba Ayşe!" {
		t.Errorf("unexpected transcript: %+v", exp.Transcript)
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	live := newTestSession(t, s)

	expired, err := s.CreateSession(-time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.SaveAnalysis(expired.ID, testAnalysis()); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if err := s.AppendChatMessage(&model.ChatMessage{SessionID: expired.ID, AnalysisID: "a1", Role: model.RoleModel, Text: "x"}); err != nil {
		t.Fatalf("AppendChatMessage: %v", err)
	}

	n, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 session removed, got %d", n)
	}

	count, err := s.AnalysisCount()
	if err != nil {
		t.Fatalf("AnalysisCount: %v", err)
	}
	if count != 0 {
		t.Errorf("expected analyses of expired session to be removed, got %d", count)
	}
	if got, _ := s.GetSession(live.ID); got == nil {
		t.Error("live session should survive cleanup")
	}
	if msgs, _ := s.ListChatMessages(expired.ID, "a1"); len(msgs) != 0 {
		t.Errorf("expected transcript of expired session to be removed, got %d", len(msgs))
	}
}

func TestGetSessionExpired(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.CreateSession(-time.Minute)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, err := s.GetSession(sess.ID)
	if err != nil || got != nil {
		t.Errorf("expired session = %v, %v; want nil, nil", got, err)
	}
}

func TestSaveAnalysisWithState(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	succeedIfCurrent := func(attempt string, a *model.Analysis) func(model.ViewState) (model.ViewState, error) {
		return func(cur model.ViewState) (model.ViewState, error) {
			if err := cur.Current(attempt); err != nil {
				return cur, err
			}
			return cur.Succeed(a.ID)
		}
	}

	first, err := s.UpdateSessionState(sess.ID, model.ViewState.Start)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.UpdateSessionState(sess.ID, func(cur model.ViewState) (model.ViewState, error) {
		return cur.Reset(), nil
	}); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	stale := testAnalysis()
	stale.ID = "stale"
	if _, err := s.SaveAnalysisWithState(sess.ID, stale, succeedIfCurrent(first.Attempt, stale)); !errors.Is(err, model.ErrStale) {
		t.Fatalf("SaveAnalysisWithState(reset attempt) error = %v, want ErrStale", err)
	}
	if n, _ := s.AnalysisCount(); n != 0 {
		t.Errorf("a discarded attempt must not store an analysis, got %d", n)
	}

	second, err := s.UpdateSessionState(sess.ID, model.ViewState.Start)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	a := testAnalysis()
	a.ID = "current"
	st, err := s.SaveAnalysisWithState(sess.ID, a, succeedIfCurrent(second.Attempt, a))
	if err != nil {
		t.Fatalf("SaveAnalysisWithState: %v", err)
	}
	if st.Status != model.StatusSuccess || st.AnalysisID != "current" {
		t.Errorf("unexpected state: %+v", st)
	}
	if n, _ := s.AnalysisCount(); n != 1 {
		t.Errorf("AnalysisCount() = %d, want 1", n)
	}
}
