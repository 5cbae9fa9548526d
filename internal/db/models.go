package db

import (
	"time"
)

// Interaction actions.
const (
	ActionLike      = "like"
	ActionPass      = "pass"
	ActionSuperLike = "super_like"
)

// Match statuses.
const (
	MatchPendingWali = "pending_wali"
	MatchActive      = "active"
	MatchRejected    = "rejected"
	MatchCancelled   = "cancelled"
	MatchBlocked     = "blocked"
)

// Guardian link statuses.
const (
	GuardianPending = "pending"
	GuardianActive  = "active"
)

// Subscription tiers.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

// Verification statuses.
const (
	VerificationVerified = "verified"
	VerificationPending  = "pending"
	VerificationNone     = "none"
)

// Profile mirrors the columns this core reads from the profile collaborator.
// The core owns none of them except the match-state columns on Match; the
// table exists locally so the candidate pool query can run against it.
type Profile struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	Email              string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash       string `gorm:"size:255;not null"`
	FullName           string `gorm:"size:128"`
	Bio                string `gorm:"size:2048"`
	Gender             string `gorm:"size:16;not null;index:idx_gender_suspended"`
	DateOfBirth        time.Time
	Country            string `gorm:"size:64"`
	City               string `gorm:"size:64"`
	Sect               string `gorm:"size:32"`
	Religiosity        string `gorm:"size:32"`
	PrayerFrequency    string `gorm:"size:32"`
	Education          string `gorm:"size:128"`
	Occupation         string `gorm:"size:128"`
	MaritalStatus      string `gorm:"size:32"`
	HasChildren        bool
	WantsChildren      bool
	Languages          string `gorm:"size:256"` // comma-separated
	VerificationStatus string `gorm:"size:16;default:none"`
	Tier               string `gorm:"size:16;not null;default:free"`
	Suspended          bool   `gorm:"index:idx_gender_suspended"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// Age computes the full years between date of birth and now.
func (p *Profile) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// Preference holds a user's match preferences, 1:1 with Profile.
type Preference struct {
	UserID               uint64 `gorm:"primaryKey"`
	MinAge               int    `gorm:"not null"`
	MaxAge               int    `gorm:"not null"`
	PreferredSect        string `gorm:"size:32"`
	PreferredReligiosity string `gorm:"size:32"`
	MaxDistanceKm        int
	AllowInternational   bool
	PreferNeverMarried   bool
	WantsChildren        *bool // nil means no stated preference
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

// Interaction is an actor's directional like/pass/super_like against a target.
//
// Composite PK (ActorID, TargetID) guarantees at most one active row per
// directed pair: a later action supersedes the earlier one in place.
//
// Indexes:
//   - idx_target_action_updated(target_id, action, updated_at DESC, actor_id)
//     serves "who liked me" listings with cursor pagination.
//   - the composite PK serves the O(1) reciprocal-like lookup.
type Interaction struct {
	ActorID   uint64    `gorm:"primaryKey"`
	TargetID  uint64    `gorm:"primaryKey;index:idx_target_action_updated,priority:1"`
	Action    string    `gorm:"size:16;not null;index:idx_target_action_updated,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_target_action_updated,priority:3,sort:desc"`
}

// Positive reports whether the action counts toward mutual interest.
func (i *Interaction) Positive() bool {
	return i.Action == ActionLike || i.Action == ActionSuperLike
}

// Match is the consent-gated pairing of two users.
//
// User1ID < User2ID always holds; the unique index on the ordered pair is
// what makes concurrent mutual-like detection create exactly one row. The
// index is also what keeps a terminally rejected pair from being re-created.
type Match struct {
	ID                  string `gorm:"primaryKey;size:36"`
	User1ID             uint64 `gorm:"not null;uniqueIndex:ux_match_pair,priority:1"`
	User2ID             uint64 `gorm:"not null;uniqueIndex:ux_match_pair,priority:2;index"`
	Status              string `gorm:"size:16;not null;index"`
	WaliApprovedUser1At *time.Time
	WaliApprovedUser2At *time.Time
	IsActive            bool
	UnmatchedBy         *uint64
	RejectedBy          *uint64
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// HasUser reports whether the given user is one of the two participants.
func (m *Match) HasUser(userID uint64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Terminal reports whether no further transitions are possible.
func (m *Match) Terminal() bool {
	switch m.Status {
	case MatchRejected, MatchCancelled, MatchBlocked:
		return true
	}
	return false
}

// GuardianLink connects a ward to a guardian (wali). Owned by an external
// collaborator; the consent flow reads active links only.
type GuardianLink struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	WardID     uint64    `gorm:"not null;index:idx_ward_status,priority:1"`
	GuardianID uint64    `gorm:"not null;index"`
	Status     string    `gorm:"size:16;not null;index:idx_ward_status,priority:2"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// UsageCounter tracks per-feature consumption within a calendar period.
//
// Composite PK (UserID, Feature, PeriodKey) plus an ON CONFLICT arithmetic
// update make increments atomic under concurrent requests.
type UsageCounter struct {
	UserID     uint64    `gorm:"primaryKey"`
	Feature    string    `gorm:"primaryKey;size:64"`
	PeriodKey  string    `gorm:"primaryKey;size:16"` // "2006-01-02" or "2006-01"
	PeriodType string    `gorm:"size:8;not null"`
	UsageCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
