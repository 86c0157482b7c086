package dashboard

import (
	"strings"
	"testing"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

func sampleResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Student: &model.StudentInfo{FullName: "Ayşe Yılmaz"},
		Exams: []model.ExamRecord{
			{
				Name:       "TYT Deneme 2",
				TotalScore: 78.5,
				Percentile: 12.3,
				Nets: []model.LessonNet{
					{Subject: "TYT Türkçe", Net: 30.25},
					{Subject: "TYT Matematik", Net: 22.5},
					{Subject: "TYT Fen", Net: -1.25},
				},
			},
			{Name: "TYT Deneme 1", Nets: []model.LessonNet{{Subject: "TYT Türkçe", Net: 100}}},
		},
		Topics: []model.TopicAnalysis{
			{Subject: "Matematik", Topic: "Problemler", Status: "KRİTİK"},
			{Subject: "Türkçe", Topic: "Paragraf", Status: "Mükemmel"},
		},
		Summary: &model.ExecutiveSummary{Overview: `<b>Güzel</b> <script>alert(1)</script><a href="javascript:x">link</a>`},
		TopicTrends: []model.TopicTrend{
			{Subject: "Matematik", Topic: "Problemler"},
			{Subject: "Türkçe", Topic: "Paragraf"},
		},
	}
}

func TestTotalNet(t *testing.T) {
	if got := TotalNet(sampleResult()); got != 51.5 {
		t.Errorf("TotalNet() = %v, want 51.5", got)
	}
	if got := TotalNet(&model.AnalysisResult{}); got != 0 {
		t.Errorf("TotalNet(no exams) = %v, want 0", got)
	}
	if got := TotalNet(nil); got != 0 {
		t.Errorf("TotalNet(nil) = %v, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{22.5, "22.50"},
		{78.5, "78.50"},
		{0, "0.00"},
		{-1.25, "-1.25"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompact(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5"},
		{12.5, "12.5"},
		{66.66666666666667, "66.67"},
		{0, "0"},
		{-0.001, "0"},
		{85000, "85000"},
	}
	for _, tt := range tests {
		if got := Compact(tt.in); got != tt.want {
			t.Errorf("Compact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   Color
	}{
		{"Kritik", ColorRed},
		{"KRİTİK", ColorRed},
		{"Gelişmeli", ColorOrange},
		{"Geliştirilmeli", ColorOrange},
		{"İyi", ColorBlue},
		{"iyi", ColorBlue},
		{"Mükemmel", ColorGreen},
		{"Kritik ama gelişiyor", ColorRed},
		{"Gelişmeli, iyi yolda", ColorOrange},
		{"", ColorNeutral},
		{"Orta", ColorNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := StatusColor(tt.status); got != tt.want {
				t.Errorf("StatusColor(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestParseTab(t *testing.T) {
	tests := map[string]Tab{
		"":         TabOverview,
		"overview": TabOverview,
		"topics":   TabTopics,
		"trends":   TabTrends,
		"coach":    TabCoach,
		"admin":    TabOverview,
	}
	for in, want := range tests {
		if got := ParseTab(in); got != want {
			t.Errorf("ParseTab(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrendIndex(t *testing.T) {
	tests := []struct {
		raw  string
		n    int
		want int
	}{
		{"1", 3, 1},
		{"2", 3, 2},
		{"3", 3, 0},
		{"-1", 3, 0},
		{"abc", 3, 0},
		{"", 3, 0},
		{"0", 0, 0},
	}
	for _, tt := range tests {
		if got := TrendIndex(tt.raw, tt.n); got != tt.want {
			t.Errorf("TrendIndex(%q, %d) = %d, want %d", tt.raw, tt.n, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	r := sampleResult()
	v := Build(r, "trends", "1")

	if v.Tab != TabTrends {
		t.Errorf("tab = %q", v.Tab)
	}
	if v.Exam == nil || v.Exam.Name != "TYT Deneme 2" {
		t.Fatalf("exam should be the first record, got %+v", v.Exam)
	}
	if v.TotalNet != 51.5 {
		t.Errorf("total net = %v", v.TotalNet)
	}
	if v.Topics[0].Color != ColorRed || v.Topics[1].Color != ColorGreen {
		t.Errorf("topic colors = %q, %q", v.Topics[0].Color, v.Topics[1].Color)
	}
	if v.SelectedTrend == nil || v.SelectedTrend.Topic != "Paragraf" || !v.Trends[1].Selected {
		t.Errorf("selected trend = %+v", v.SelectedTrend)
	}
	if strings.Contains(v.SummaryHTML, "<script") || strings.Contains(v.SummaryHTML, "javascript:") {
		t.Errorf("summary should be sanitized, got %q", v.SummaryHTML)
	}
	if !strings.Contains(v.SummaryHTML, "<b>Güzel</b>") {
		t.Errorf("summary should keep formatting, got %q", v.SummaryHTML)
	}

	// The result is read-only.
	if r.Exams[0].Nets[2].Net != -1.25 || len(r.Topics) != 2 {
		t.Error("Build must not modify the result")
	}
}

func TestBuildWithoutExams(t *testing.T) {
	v := Build(&model.AnalysisResult{Student: &model.StudentInfo{}}, "overview", "")
	if v.Exam != nil {
		t.Error("no exam panel expected without exams")
	}
	if v.TotalNet != 0 || v.SelectedTrend != nil {
		t.Errorf("unexpected view: %+v", v)
	}

	empty := Build(nil, "", "")
	if empty.Exam != nil || empty.Tab != TabOverview {
		t.Errorf("nil result view = %+v", empty)
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown("**Merhaba** Ayşe!\n\n- Paragraf\n- Problem\n\n<script>alert(1)</script>")
	if !strings.Contains(got, "<strong>Merhaba</strong>") || !strings.Contains(got, "<li>Paragraf</li>") {
		t.Errorf("markdown not rendered: %q", got)
	}
	if strings.Contains(got, "<script") {
		t.Errorf("raw HTML must not survive: %q", got)
	}
}

func TestPaletteColor(t *testing.T) {
	if PaletteColor(0) != PaletteColor(len(Palette)) {
		t.Error("palette should cycle")
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText(`<p><b>Güzel</b> &amp; <i>istikrarlı</i></p><script>x()</script>`)
	if got != "Güzel & istikrarlı" {
		t.Errorf("PlainText() = %q", got)
	}
}
