// Package dashboard projects an analysis result onto what the dashboard shows.
// Every function here is pure: the result is never modified.
package dashboard

import (
	"strconv"
	"strings"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Tab is a dashboard section.
type Tab string

const (
	TabOverview Tab = "overview"
	TabTopics   Tab = "topics"
	TabTrends   Tab = "trends"
	TabCoach    Tab = "coach"
)

// Tabs lists the sections in display order.
var Tabs = []Tab{TabOverview, TabTopics, TabTrends, TabCoach}

// ParseTab returns the named tab, falling back to the overview.
func ParseTab(s string) Tab {
	for _, t := range Tabs {
		if string(t) == s {
			return t
		}
	}
	return TabOverview
}

// Color is a status badge colour.
type Color string

const (
	ColorRed     Color = "red"
	ColorOrange  Color = "orange"
	ColorBlue    Color = "blue"
	ColorGreen   Color = "green"
	ColorNeutral Color = "neutral"
)

// StatusColor maps a free-text topic status onto a badge colour by keyword.
// Keywords are checked in order, so "Gelişmeli ama iyi" is orange.
func StatusColor(status string) Color {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "kritik"):
		return ColorRed
	case strings.Contains(s, "geliş"):
		return ColorOrange
	case strings.Contains(s, "iyi"):
		return ColorBlue
	case strings.Contains(s, "mükemmel"):
		return ColorGreen
	default:
		return ColorNeutral
	}
}

// Palette colours chart bars by index.
var Palette = []string{"#0d9488", "#059669", "#10b981", "#34d399", "#6ee7b7", "#a7f3d0", "#2dd4bf", "#14b8a6"}

// PaletteColor returns the palette entry for index i, cycling.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// TotalNet sums the subject nets of the most recent exam; 0 without exams.
func TotalNet(r *model.AnalysisResult) float64 {
	exam := r.LatestExam()
	if exam == nil {
		return 0
	}
	var total float64
	for _, n := range exam.Nets {
		total += n.Net
	}
	return total
}

// Format renders a number with two decimals.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Compact renders a number with at most two decimals and no trailing zeros.
func Compact(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// TrendIndex parses the selected trend index, falling back to 0 when it is not a valid
// index into n trends.
func TrendIndex(raw string, n int) int {
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || i < 0 || i >= n {
		return 0
	}
	return i
}

// TopicRow is one row of the topic table.
type TopicRow struct {
	model.TopicAnalysis
	Color Color
}

// TrendOption is one entry of the trend selector.
type TrendOption struct {
	Index    int
	Label    string
	Selected bool
}

// View is everything the dashboard renders for one request.
type View struct {
	Tab         Tab
	Student     model.StudentInfo
	Exam        *model.ExamRecord // nil when the report has no exams
	TotalNet    float64
	Topics      []TopicRow
	Summary     model.ExecutiveSummary
	SummaryHTML string // sanitized Overview
	Simulation  model.Simulation
	StudyPlan   []string

	Trends        []TrendOption
	TrendIndex    int
	SelectedTrend *model.TopicTrend
	ExamHistory   []model.ExamRecord
}

// Build projects r for the given tab and trend selection.
func Build(r *model.AnalysisResult, tab, trend string) View {
	v := View{
		Tab:        ParseTab(tab),
		Student:    r.StudentOrEmpty(),
		Exam:       r.LatestExam(),
		TotalNet:   TotalNet(r),
		Summary:    r.SummaryOrEmpty(),
		Simulation: r.SimulationOrEmpty(),
	}
	v.SummaryHTML = SanitizeHTML(v.Summary.Overview)
	if r == nil {
		return v
	}

	v.StudyPlan = r.StudyPlan
	v.ExamHistory = r.Exams
	for _, t := range r.Topics {
		v.Topics = append(v.Topics, TopicRow{TopicAnalysis: t, Color: StatusColor(t.Status)})
	}

	v.TrendIndex = TrendIndex(trend, len(r.TopicTrends))
	for i, t := range r.TopicTrends {
		v.Trends = append(v.Trends, TrendOption{
			Index:    i,
			Label:    TrendLabel(t),
			Selected: i == v.TrendIndex,
		})
	}
	if len(r.TopicTrends) > 0 {
		v.SelectedTrend = &r.TopicTrends[v.TrendIndex]
	}
	return v
}

// TrendLabel names a trend for the selector, e.g. "Matematik - Problemler".
func TrendLabel(t model.TopicTrend) string {
	switch {
	case t.Subject == "":
		return t.Topic
	case t.Topic == "":
		return t.Subject
	default:
		return t.Subject + " - " + t.Topic
	}
}
