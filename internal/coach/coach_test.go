package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkkukul/Elif-Hoca/internal/llm"
	"github.com/mkkukul/Elif-Hoca/internal/llm/prompts"
	"github.com/mkkukul/Elif-Hoca/internal/model"
	"github.com/mkkukul/Elif-Hoca/internal/store"
)

type fakeProvider struct {
	mu        sync.Mutex
	fail      bool
	calls     int
	lastInstr string
	lastTurns []llm.Turn
}

func (f *fakeProvider) Analyze(context.Context, llm.Document) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeProvider) Chat(_ context.Context, instr string, history []llm.Turn, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastInstr = instr
	f.lastTurns = history
	if f.fail {
		return "", errors.New("503 service unavailable")
	}
	return "Cevap: " + message, nil
}

func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) Close() error { return nil }

func setup(t *testing.T, p llm.Provider) (*Service, *store.Store, string, *model.Analysis) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sess, err := st.CreateSession(time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	a := &model.Analysis{
		FileHash: "h",
		MIMEType: "image/png",
		Result: &model.AnalysisResult{
			Student:   &model.StudentInfo{FullName: "Ayşe Yılmaz"},
			StudyPlan: []string{"Paragraf çöz"},
		},
	}
	if err := st.SaveAnalysis(sess.ID, a); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	return NewService(p, st, nil), st, sess.ID, a
}

func TestSeedAddsSingleWelcome(t *testing.T) {
	svc, _, sid, a := setup(t, &fakeProvider{})

	msgs, err := svc.Seed(sid, a)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != model.RoleModel || !strings.HasPrefix(msgs[0].Text, "Merhaba Ayşe!") {
		t.Fatalf("unexpected welcome: %+v", msgs)
	}

	again, err := svc.Seed(sid, a)
	if err != nil {
		t.Fatalf("Seed again: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("seeding twice should keep a single welcome, got %d", len(again))
	}
}

func TestTranscriptGrowsByTwoPerExchange(t *testing.T) {
	fp := &fakeProvider{}
	svc, st, sid, a := setup(t, fp)
	if _, err := svc.Seed(sid, a); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	questions := []string{"Matematik nasıl?", prompts.QuickActions[0], "Teşekkürler"}
	for n, q := range questions {
		msgs, err := svc.Send(context.Background(), sid, a, q)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if want := 1 + 2*(n+1); len(msgs) != want {
			t.Fatalf("after %d exchanges transcript has %d entries, want %d", n+1, len(msgs), want)
		}
	}

	msgs, err := st.ListChatMessages(sid, a.ID)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	for i, m := range msgs[1:] {
		wantRole := model.RoleUser
		if i%2 == 1 {
			wantRole = model.RoleModel
		}
		if m.Role != wantRole {
			t.Errorf("entry %d role = %s, want %s", i+1, m.Role, wantRole)
		}
	}
	if msgs[len(msgs)-1].Text != "Cevap: Teşekkürler" {
		t.Errorf("last reply = %q", msgs[len(msgs)-1].Text)
	}

	// The model receives the full prior transcript and the analysis JSON.
	if len(fp.lastTurns) != 5 {
		t.Errorf("provider got %d history turns, want 5", len(fp.lastTurns))
	}
	if !strings.Contains(fp.lastInstr, "Paragraf çöz") {
		t.Error("instruction should embed the analysis JSON")
	}
}

func TestSendFailureAppendsApology(t *testing.T) {
	svc, _, sid, a := setup(t, &fakeProvider{fail: true})
	if _, err := svc.Seed(sid, a); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	msgs, err := svc.Send(context.Background(), sid, a, "Merhaba")
	if err != nil {
		t.Fatalf("Send should not fail on model errors: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(msgs))
	}
	if msgs[2].Role != model.RoleModel || msgs[2].Text != prompts.Apology {
		t.Errorf("expected apology as model turn, got %+v", msgs[2])
	}
}

func TestSendWithoutProviderAppendsApology(t *testing.T) {
	svc, _, sid, a := setup(t, nil)
	msgs, err := svc.Send(context.Background(), sid, a, "Merhaba")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Text != prompts.Apology {
		t.Errorf("unexpected transcript: %+v", msgs)
	}
}

func TestSendIgnoresBlankInput(t *testing.T) {
	fp := &fakeProvider{}
	svc, _, sid, a := setup(t, fp)
	if _, err := svc.Seed(sid, a); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	for _, in := range []string{"", "   ", "\n\t", "<student-message></student-message>"} {
		msgs, err := svc.Send(context.Background(), sid, a, in)
		if err != nil {
			t.Fatalf("Send(%q): %v", in, err)
		}
		if len(msgs) != 1 {
			t.Errorf("Send(%q) recorded a turn: %d entries", in, len(msgs))
		}
	}
	if fp.calls != 0 {
		t.Errorf("provider should not be called for blank input, got %d calls", fp.calls)
	}
}

func TestConcurrentSendsKeepPairs(t *testing.T) {
	svc, st, sid, a := setup(t, &fakeProvider{})
	if _, err := svc.Seed(sid, a); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Send(context.Background(), sid, a, fmt.Sprintf("soru %d", i)); err != nil {
				t.Errorf("Send: %v", err)
			}
		}(i)
	}
	wg.Wait()

	msgs, err := st.ListChatMessages(sid, a.ID)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(msgs) != 1+2*n {
		t.Fatalf("expected %d entries, got %d", 1+2*n, len(msgs))
	}
	for i := 1; i < len(msgs); i += 2 {
		if "Cevap: "+msgs[i].Text != msgs[i+1].Text {
			t.Errorf("reply %d does not follow its question: %q / %q", i, msgs[i].Text, msgs[i+1].Text)
		}
	}
}
