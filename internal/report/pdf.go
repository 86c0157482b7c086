package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/mkkukul/Elif-Hoca/internal/dashboard"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Translate returns the localized label for a message ID.
type Translate func(id string) string

const (
	pageWidth = 190.0
	netChart  = "nets"
)

// PDF renders the dashboard projection as an A4 report.
func PDF(v dashboard.View, t Translate) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	cp := pdf.UnicodeTranslatorFromDescriptor("")
	tx := func(s string) string { return cp(foldLatin1(s)) }

	w := &writer{pdf: pdf, tx: tx}
	w.header(v, t)
	if v.Exam != nil {
		if err := w.nets(v.Exam, t); err != nil {
			return nil, err
		}
	}
	w.topics(v.Topics, t)
	w.summary(v.Summary, t)
	w.simulation(v.Simulation, t)
	w.list(t("StudyPlan"), v.StudyPlan, true)
	w.history(v.ExamHistory, t)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type writer struct {
	pdf *gofpdf.Fpdf
	tx  func(string) string
}

func (w *writer) heading(s string) {
	w.pdf.Ln(4)
	w.pdf.SetFont("Arial", "B", 12)
	w.pdf.SetTextColor(13, 148, 136)
	w.pdf.CellFormat(0, 8, w.tx(s), "", 1, "", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetFont("Arial", "", 9)
}

func (w *writer) para(s string) {
	if s == "" {
		return
	}
	w.pdf.SetFont("Arial", "", 9)
	w.pdf.MultiCell(0, 5, w.tx(s), "", "", false)
}

func (w *writer) header(v dashboard.View, t Translate) {
	pdf := w.pdf
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, w.tx(t("ReportTitle")), "", 1, "C", false, 0, "")

	s := v.Student
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, w.tx(orDefault(s.FullName, t("NoStudentName"))), "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, w.tx(orDefault(s.Section, t("NoSection"))+" | "+orDefault(s.Number, t("NoNumber"))), "", 1, "", false, 0, "")
	if v.Exam == nil {
		return
	}
	pdf.CellFormat(0, 5, w.tx(orDefault(v.Exam.Name, t("NoExamName"))+" "+v.Exam.Date), "", 1, "", false, 0, "")
	pdf.Ln(2)

	cells := []string{
		t("TotalNet") + ": " + dashboard.Format(v.TotalNet),
		t("Score") + ": " + dashboard.Format(v.Exam.TotalScore),
		t("Percentile") + ": %" + dashboard.Format(v.Exam.Percentile),
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 253, 250)
	for _, c := range cells {
		pdf.CellFormat(pageWidth/float64(len(cells)), 9, w.tx(c), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (w *writer) nets(exam *model.ExamRecord, t Translate) error {
	w.heading(t("SubjectNets"))
	if len(exam.Nets) == 0 {
		return nil
	}
	png, err := NetChartPNG(exam, ChartWidth, ChartHeight)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	w.pdf.RegisterImageOptionsReader(netChart, opts, bytes.NewReader(png))
	h := pageWidth * ChartHeight / ChartWidth
	w.pdf.ImageOptions(netChart, 10, w.pdf.GetY(), pageWidth, h, true, opts, 0, "")
	return w.pdf.Error()
}

func (w *writer) topics(rows []dashboard.TopicRow, t Translate) {
	if len(rows) == 0 {
		return
	}
	w.heading(t("TopicDetail"))
	cols := []struct {
		label string
		width float64
	}{
		{t("ColSubject"), 34}, {t("ColTopic"), 56}, {t("ColCorrect"), 12}, {t("ColWrong"), 12},
		{t("ColBlank"), 12}, {t("ColSuccess"), 18}, {t("ColLost"), 16}, {t("ColStatus"), 30},
	}
	w.pdf.SetFont("Arial", "B", 9)
	for _, c := range cols {
		w.pdf.CellFormat(c.width, 7, w.tx(c.label), "1", 0, "C", false, 0, "")
	}
	w.pdf.Ln(-1)
	w.pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		vals := []string{
			r.Subject, r.Topic,
			dashboard.Compact(r.Correct), dashboard.Compact(r.Wrong), dashboard.Compact(r.Blank),
			"%" + dashboard.Format(r.SuccessRate), "-" + dashboard.Format(r.LostPoints), r.Status,
		}
		for i, c := range cols {
			w.pdf.CellFormat(c.width, 6, w.tx(fit(w.pdf, c.width, vals[i])), "1", 0, "", false, 0, "")
		}
		w.pdf.Ln(-1)
	}
}

func (w *writer) summary(s model.ExecutiveSummary, t Translate) {
	w.heading(t("Summary"))
	w.para(dashboard.PlainText(s.Overview))
	w.list(t("Strengths"), s.Strengths, false)
	w.list(t("Weaknesses"), s.Weaknesses, false)
	if s.EstimatedRank > 0 {
		w.para(t("EstimatedRank") + ": " + dashboard.Compact(s.EstimatedRank))
	}
}

func (w *writer) simulation(s model.Simulation, t Translate) {
	if s.Scenario == "" && s.TargetScore == 0 && len(s.Steps) == 0 {
		return
	}
	w.heading(t("Simulation"))
	w.para(s.Scenario)
	w.para(t("TargetScore") + ": " + dashboard.Format(s.TargetScore) + "  " +
		t("TargetPercentile") + ": %" + dashboard.Format(s.TargetPercentile))
	if s.ScoreRange != "" {
		w.para(t("ScoreRange") + ": " + s.ScoreRange)
	}
	if s.RequiredNetGain != "" {
		w.para(t("RequiredNetGain") + ": " + s.RequiredNetGain)
	}
	w.list("", s.Steps, true)
}

func (w *writer) history(exams []model.ExamRecord, t Translate) {
	if len(exams) == 0 {
		return
	}
	w.heading(t("ExamHistory"))
	widths := []float64{80, 40, 35, 35}
	labels := []string{t("ColExam"), t("ColDate"), t("Score"), t("Percentile")}
	w.pdf.SetFont("Arial", "B", 9)
	for i, l := range labels {
		w.pdf.CellFormat(widths[i], 7, w.tx(l), "1", 0, "C", false, 0, "")
	}
	w.pdf.Ln(-1)
	w.pdf.SetFont("Arial", "", 8)
	for _, e := range exams {
		vals := []string{e.Name, e.Date, dashboard.Format(e.TotalScore), "%" + dashboard.Format(e.Percentile)}
		for i, v := range vals {
			w.pdf.CellFormat(widths[i], 6, w.tx(fit(w.pdf, widths[i], v)), "1", 0, "", false, 0, "")
		}
		w.pdf.Ln(-1)
	}
}

func (w *writer) list(title string, items []string, numbered bool) {
	if len(items) == 0 {
		return
	}
	if title != "" {
		w.heading(title)
	}
	for i, it := range items {
		prefix := "- "
		if numbered {
			prefix = strconv.Itoa(i+1) + ". "
		}
		w.para(prefix + it)
	}
}

// fit shortens s until it fits a table cell of the given width.
func fit(pdf *gofpdf.Fpdf, width float64, s string) string {
	r := []rune(s)
	for len(r) > 1 && pdf.GetStringWidth(foldLatin1(string(r))) > width-2 {
		r = r[:len(r)-1]
	}
	return string(r)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
