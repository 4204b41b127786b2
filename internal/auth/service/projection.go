package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"autogate/internal/auth/models"
	"autogate/internal/events"
	"autogate/internal/idp"
	"autogate/internal/platform/sentinel"
)

const projectionActor = "idp-sync"

// upsertFromIdentity reconciles the local user projection with the identity
// the IdP just vouched for. First login creates the record and emits
// user.created; later logins compute a field-level diff and emit user.updated
// only when something actually changed. The no-op path performs no write.
func (s *Service) upsertFromIdentity(ctx context.Context, identity idp.Identity) (*models.User, error) {
	existing, err := s.users.FindByExternalID(ctx, identity.ExternalID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.createProjection(ctx, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	changes := existing.ProfileDiff(models.Profile{
		Username:  identity.Username,
		Email:     identity.Email,
		FullName:  identity.FullName,
		Phone:     identity.Phone,
		AvatarURL: identity.AvatarURL,
	})
	groupsChanged := len(identity.Groups) > 0 && !equalGroups(existing.Groups, identity.Groups)

	if len(changes) == 0 && !groupsChanged {
		return existing, nil
	}

	existing.ApplyChanges(changes, projectionActor, now)
	if groupsChanged {
		existing.Groups = identity.Groups
		changes["groups"] = strings.Join(identity.Groups, ",")
	}
	if err := s.users.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info("user projection updated",
		"user_id", existing.ID, "external_id", existing.ExternalID, "fields", len(changes))

	s.publish(ctx, events.Event{
		Action:    events.ActionUserUpdated,
		UserID:    existing.ID,
		Email:     existing.Email,
		Username:  existing.Username,
		Changes:   changes,
		Timestamp: now,
	})
	return existing, nil
}

func (s *Service) createProjection(ctx context.Context, identity idp.Identity) (*models.User, error) {
	now := s.now()
	user := &models.User{
		ID:         uuid.NewString(),
		ExternalID: identity.ExternalID,
		Username:   identity.Username,
		Email:      identity.Email,
		FullName:   identity.FullName,
		Phone:      identity.Phone,
		AvatarURL:  identity.AvatarURL,
		Status:     models.UserStatusActive,
		Groups:     identity.Groups,
		CreatedBy:  projectionActor,
		ModifiedBy: projectionActor,
		CreatedAt:  now,
	}
	err := s.users.Insert(ctx, user)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		// Lost a first-login race; the winner's row is visible now.
		existing, ferr := s.users.FindByExternalID(ctx, identity.ExternalID)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ferr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info("user projection created",
		"user_id", user.ID, "external_id", user.ExternalID, "username", user.Username)

	s.publish(ctx, events.Event{
		Action:    events.ActionUserCreated,
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Timestamp: now,
	})
	return user, nil
}

func equalGroups(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, g := range a {
		seen[g] = struct{}{}
	}
	for _, g := range b {
		if _, ok := seen[g]; !ok {
			return false
		}
	}
	return true
}
