package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"autogate/internal/auth/models"
	"autogate/internal/events"
	"autogate/internal/idp"
)

// ExpirySweep finds sessions whose expiry has passed but which were never
// explicitly logged out, revokes them, and emits a cleanup logout event for
// each. Sessions are processed independently: one failure is logged and
// skipped, never aborting the rest of the batch. Returns the number of
// sessions actually transitioned by this run.
func (s *Service) ExpirySweep(ctx context.Context) (int, error) {
	start := s.now()
	expired, err := s.sessions.ListExpired(ctx, start)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(expired) == 0 {
		s.metrics.ObserveSweep(0, time.Since(start))
		return 0, nil
	}

	var processed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.sweepWorkers)
	for i := range expired {
		sess := expired[i]
		g.Go(func() error {
			if s.clearExpired(ctx, &sess, start) {
				processed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(processed.Load())
	s.metrics.ObserveSweep(n, time.Since(start))
	s.logger.Info("expiry sweep completed",
		"candidates", len(expired), "processed", n, "elapsed", time.Since(start))
	return n, nil
}

// clearExpired revokes one expired session. A logout landing between the
// list and this revoke wins: the revoke reports no transition, and the sweep
// neither counts the session nor emits a second logout event for it.
func (s *Service) clearExpired(ctx context.Context, sess *models.Session, now time.Time) bool {
	// The stored value is the credential's fingerprint, not the credential;
	// forwarding it upstream is a best-effort hint only.
	s.revokeUpstream(ctx, sess.CredentialHash, idp.RefreshToken)

	transitioned, err := s.sessions.Revoke(ctx, sess.ID, now)
	if err != nil {
		s.logger.Error("failed to revoke expired session",
			"error", err, "session_id", sess.ID, "user_id", sess.UserID)
		return false
	}
	if !transitioned {
		return false
	}
	s.publish(ctx, events.Event{
		Action:    events.ActionLogout,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Reason:    "expired",
		Timestamp: now,
	})
	return true
}
