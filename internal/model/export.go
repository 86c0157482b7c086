package model

import "time"

// ContractVersion identifies the response schema handed to the model.
const ContractVersion = 2

// AnalysisExport is the top-level JSON structure for exported analyses.
type AnalysisExport struct {
	SchemaVersion int             `json:"schema_version"`
	FileName      string          `json:"file_name,omitempty"`
	MIMEType      string          `json:"mime_type"`
	FileHash      string          `json:"file_hash"`
	AnalyzedAt    time.Time       `json:"analyzed_at"`
	Result        *AnalysisResult `json:"result"`
	Transcript    []ExportedMsg   `json:"transcript,omitempty"`
}

// ExportedMsg is a single message in an exported transcript.
type ExportedMsg struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// NewAnalysisExport builds the export of an analysis and its transcript.
func NewAnalysisExport(a Analysis, transcript []ChatMessage) AnalysisExport {
	exp := AnalysisExport{
		SchemaVersion: ContractVersion,
		FileName:      a.FileName,
		MIMEType:      a.MIMEType,
		FileHash:      a.FileHash,
		AnalyzedAt:    a.CreatedAt,
		Result:        a.Result,
	}
	for _, m := range transcript {
		exp.Transcript = append(exp.Transcript, ExportedMsg{Role: m.Role, Text: m.Text, At: m.CreatedAt})
	}
	return exp
}
