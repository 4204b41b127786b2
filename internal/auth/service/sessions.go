package service

import (
	"context"
	"fmt"

	"autogate/internal/auth/models"
)

// Sessions lists the user's currently active sessions, flagging the one the
// call arrived on so clients can render "this device".
func (s *Service) Sessions(ctx context.Context, userID, currentSessionID string) ([]models.SessionSummary, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]models.SessionSummary, 0, len(sessions))
	for i := range sessions {
		summary := sessions[i].Summary()
		summary.IsCurrent = sessions[i].ID == currentSessionID
		out = append(out, summary)
	}
	return out, nil
}
