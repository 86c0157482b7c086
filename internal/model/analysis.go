package model

// AnalysisResult is the validated payload extracted from an exam score report.
// The JSON field names are the contract with the generative model and must not change.
type AnalysisResult struct {
	Student     *StudentInfo      `json:"ogrenci_bilgi" validate:"required"`
	Exams       []ExamRecord      `json:"exams_history" validate:"required,dive"`
	Topics      []TopicAnalysis   `json:"konu_analizi" validate:"required,dive"`
	Summary     *ExecutiveSummary `json:"executive_summary" validate:"required"`
	StudyPlan   []string          `json:"calisma_plani" validate:"required"`
	Simulation  *Simulation       `json:"simulasyon" validate:"required"`
	TopicTrends []TopicTrend      `json:"topic_trends" validate:"required,dive"`
}

// StudentInfo identifies the student. Every field may be empty when unreadable.
type StudentInfo struct {
	FullName string `json:"ad_soyad"`
	Section  string `json:"sube"`
	Number   string `json:"numara"`
}

// LessonNet is the net count for a single subject.
type LessonNet struct {
	Subject string  `json:"ders" validate:"required"`
	Net     float64 `json:"net"`
}

// ExamRecord is one exam found in the report. The first record is the most recent one.
type ExamRecord struct {
	Name       string      `json:"sinav_adi"`
	Date       string      `json:"tarih"`
	TotalScore float64     `json:"toplam_puan" validate:"gte=0"`
	Percentile float64     `json:"genel_yuzdelik" validate:"gte=0,lte=100"`
	Nets       []LessonNet `json:"ders_netleri" validate:"required,dive"`
}

// TopicAnalysis is the per-topic answer breakdown.
type TopicAnalysis struct {
	Subject     string  `json:"ders" validate:"required"`
	Topic       string  `json:"konu" validate:"required"`
	Correct     float64 `json:"dogru" validate:"gte=0"`
	Wrong       float64 `json:"yanlis" validate:"gte=0"`
	Blank       float64 `json:"bos" validate:"gte=0"`
	SuccessRate float64 `json:"basari_yuzdesi" validate:"gte=0,lte=100"`
	LostPoints  float64 `json:"kayip_puan" validate:"gte=0"`
	Status      string  `json:"durum"`
}

// ExecutiveSummary is the narrative synthesis. Overview is an untrusted HTML fragment.
type ExecutiveSummary struct {
	Overview      string   `json:"mevcut_durum"`
	Strengths     []string `json:"guclu_yonler"`
	Weaknesses    []string `json:"zayif_yonler"`
	EstimatedRank float64  `json:"yks_tahmini_siralama" validate:"gte=0"`
}

// Simulation is a projected score scenario.
type Simulation struct {
	Scenario         string   `json:"senaryo"`
	TargetPercentile float64  `json:"hedef_yuzdelik"`
	TargetScore      float64  `json:"hedef_puan"`
	ScoreRange       string   `json:"puan_araligi"`
	RequiredNetGain  string   `json:"gerekli_net_artisi"`
	Steps            []string `json:"gelisim_adimlari"`
}

// TrendPoint is one dated success measurement of a topic.
type TrendPoint struct {
	Date        string  `json:"tarih"`
	SuccessRate float64 `json:"basari_yuzdesi" validate:"gte=0,lte=100"`
}

// TopicTrend is the chronological success history of a topic.
type TopicTrend struct {
	Subject string       `json:"ders" validate:"required"`
	Topic   string       `json:"konu" validate:"required"`
	History []TrendPoint `json:"history" validate:"required,dive"`
}

// LatestExam returns the first exam record, or nil when the report has none.
func (r *AnalysisResult) LatestExam() *ExamRecord {
	if r == nil || len(r.Exams) == 0 {
		return nil
	}
	return &r.Exams[0]
}

// StudentOrEmpty never returns nil.
func (r *AnalysisResult) StudentOrEmpty() StudentInfo {
	if r == nil || r.Student == nil {
		return StudentInfo{}
	}
	return *r.Student
}

// SummaryOrEmpty never returns nil.
func (r *AnalysisResult) SummaryOrEmpty() ExecutiveSummary {
	if r == nil || r.Summary == nil {
		return ExecutiveSummary{}
	}
	return *r.Summary
}

// SimulationOrEmpty never returns nil.
func (r *AnalysisResult) SimulationOrEmpty() Simulation {
	if r == nil || r.Simulation == nil {
		return Simulation{}
	}
	return *r.Simulation
}
