package store

import (
	"fmt"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// ExportSessionAnalysis builds the export of the analysis shown in a session, including its
// coaching transcript. It returns nil when the session has no successful analysis.
func (s *Store) ExportSessionAnalysis(sessionID string) (*model.AnalysisExport, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.State.Status != model.StatusSuccess || sess.State.AnalysisID == "" {
		return nil, nil
	}

	a, err := s.GetAnalysis(sess.State.AnalysisID)
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", sess.State.AnalysisID, err)
	}
	if a == nil {
		return nil, nil
	}

	transcript, err := s.ListChatMessages(sessionID, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}

	exp := model.NewAnalysisExport(*a, transcript)
	return &exp, nil
}
