package models

import "time"

// UserStatus is the lifecycle state of a local user projection.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusBlocked  UserStatus = "BLOCKED"
)

// User is the local projection of an IdP-owned identity. The IdP remains the
// source of truth; this record exists for fast local joins and audit fields.
// ExternalID is unique and immutable once set. Users are never hard-deleted;
// status moves to INACTIVE instead.
type User struct {
	ID         string
	ExternalID string
	Username   string
	Email      string
	FullName   string
	Phone      string
	AvatarURL  string
	Status     UserStatus
	Groups     []string
	CreatedBy  string
	ModifiedBy string
	CreatedAt  time.Time
	ModifiedAt *time.Time
}

// Profile is the subset of user fields mirrored from IdP claims. Used to
// compute field-level diffs on login.
type Profile struct {
	Username  string
	Email     string
	FullName  string
	Phone     string
	AvatarURL string
}

// ProfileDiff returns the set of profile fields whose incoming value differs
// from the stored one, keyed by field name. Empty incoming values are treated
// as "claim absent" and never overwrite stored data.
func (u *User) ProfileDiff(incoming Profile) map[string]string {
	changes := make(map[string]string)
	if incoming.Username != "" && incoming.Username != u.Username {
		changes["username"] = incoming.Username
	}
	if incoming.Email != "" && incoming.Email != u.Email {
		changes["email"] = incoming.Email
	}
	if incoming.FullName != "" && incoming.FullName != u.FullName {
		changes["full_name"] = incoming.FullName
	}
	if incoming.Phone != "" && incoming.Phone != u.Phone {
		changes["phone"] = incoming.Phone
	}
	if incoming.AvatarURL != "" && incoming.AvatarURL != u.AvatarURL {
		changes["avatar_url"] = incoming.AvatarURL
	}
	return changes
}

// ApplyChanges overwrites the profile fields named in changes and stamps the
// modification audit fields.
func (u *User) ApplyChanges(changes map[string]string, modifiedBy string, now time.Time) {
	for field, value := range changes {
		switch field {
		case "username":
			u.Username = value
		case "email":
			u.Email = value
		case "full_name":
			u.FullName = value
		case "phone":
			u.Phone = value
		case "avatar_url":
			u.AvatarURL = value
		}
	}
	u.ModifiedBy = modifiedBy
	u.ModifiedAt = &now
}
