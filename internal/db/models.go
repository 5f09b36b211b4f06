package db

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Swipe directions.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Swipe record boxes. Every swipe is written twice, once per side.
const (
	BoxOutgoing = "outgoing"
	BoxIncoming = "incoming"
)

// User is the dating profile of an authenticated account.
//
// ID is the subject issued by the auth provider. CurrentMatches and
// IsAvailable are only mutated by the match engine (create/unmatch).
type User struct {
	ID             string                      `gorm:"primaryKey;size:64"`
	DisplayName    string                      `gorm:"size:64;not null"`
	Gender         string                      `gorm:"size:16"`
	Campus         string                      `gorm:"size:64"`
	GradYear       int                         `gorm:"not null"`
	Bio            string                      `gorm:"size:512"`
	IsAvailable    bool                        `gorm:"not null"`
	IsPremium      bool                        `gorm:"not null"`
	CurrentMatches datatypes.JSONSlice[string] `gorm:"not null"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime"`
}

// NewUser returns a user ready to swipe.
func NewUser(id, displayName string) User {
	return User{
		ID:             id,
		DisplayName:    displayName,
		IsAvailable:    true,
		CurrentMatches: datatypes.JSONSlice[string]{},
	}
}

// AddMatch records matchID as a current match. Idempotent.
func (u *User) AddMatch(matchID string) {
	if slices.Contains(u.CurrentMatches, matchID) {
		return
	}
	u.CurrentMatches = append(u.CurrentMatches, matchID)
}

// RemoveMatch drops matchID from the current matches. Idempotent.
func (u *User) RemoveMatch(matchID string) {
	u.CurrentMatches = slices.DeleteFunc(slices.Clone(u.CurrentMatches), func(id string) bool {
		return id == matchID
	})
}

// SwipeCounter is the per-user daily swipe quota state.
//
// ResetDate doubles as the "last write" marker: a counter whose ResetDate is
// before the start of today is logically zero.
type SwipeCounter struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	Count     int       `gorm:"not null"`
	ResetDate time.Time `gorm:"not null;index"`
}

// SwipeRecord is one side of a swipe.
//
// Composite PK: (OwnerID, OtherID, Box)
//   - outgoing: OwnerID swiped OtherID
//   - incoming: OtherID swiped OwnerID
//
// The PK makes a swipe write-once per (swiper, swiped).
//
// Indexes:
//   - idx_owner_box_dir_created(owner_id, box, direction, created_at DESC)
//     Serves "who swiped right on me" listings with cursor pagination.
type SwipeRecord struct {
	OwnerID   string    `gorm:"primaryKey;size:64;index:idx_owner_box_dir_created,priority:1"`
	OtherID   string    `gorm:"primaryKey;size:64"`
	Box       string    `gorm:"primaryKey;size:8;index:idx_owner_box_dir_created,priority:2"`
	Direction string    `gorm:"size:8;not null;index:idx_owner_box_dir_created,priority:3"`
	CreatedAt time.Time `gorm:"not null;index:idx_owner_box_dir_created,priority:4,sort:desc"`
}

// Match is created when two users have swiped right on each other.
//
// UserAID < UserBID always. ActivePairKey is "a|b" while the match is active
// and NULL afterwards; its unique index guarantees one active match per pair.
// IsActive=false is terminal.
type Match struct {
	ID            string  `gorm:"primaryKey;size:36"`
	UserAID       string  `gorm:"size:64;not null;index:idx_match_a_active,priority:1"`
	UserBID       string  `gorm:"size:64;not null;index:idx_match_b_active,priority:1"`
	ActivePairKey *string `gorm:"size:140;uniqueIndex"`
	IsActive      bool    `gorm:"not null;index:idx_match_a_active,priority:2;index:idx_match_b_active,priority:2"`
	MessageCount  int64   `gorm:"not null"`
	MatchDate     time.Time
	ChannelID     string `gorm:"size:64"`

	UserAConsented bool `gorm:"not null"`
	UserBConsented bool `gorm:"not null"`
	UserAViewed    bool `gorm:"not null"`
	UserBViewed    bool `gorm:"not null"`

	// WarningShown is set once the consent prompt has been surfaced.
	WarningShown bool `gorm:"not null"`
	// MatchedMessageSent gates the "you matched" system message.
	MatchedMessageSent bool `gorm:"not null"`
	// BothConsentedNotified gates the "both of you decided" system message.
	BothConsentedNotified bool `gorm:"not null"`

	DeclinedBy         string `gorm:"size:64"`
	DeactivatedAt      *time.Time
	DeactivationReason string    `gorm:"size:32"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// PairKey is the canonical, order-independent key of two users.
func PairKey(a, b string) (first, second, key string) {
	if b < a {
		a, b = b, a
	}
	return a, b, a + "|" + b
}

func (m *Match) HasUser(userID string) bool {
	return m.UserAID == userID || m.UserBID == userID
}

// OtherUser returns the participant that is not userID.
func (m *Match) OtherUser(userID string) (string, bool) {
	switch userID {
	case m.UserAID:
		return m.UserBID, true
	case m.UserBID:
		return m.UserAID, true
	}
	return "", false
}

// ConsentOf reports whether userID has consented.
func (m *Match) ConsentOf(userID string) bool {
	if userID == m.UserAID {
		return m.UserAConsented
	}
	return userID == m.UserBID && m.UserBConsented
}

func (m *Match) BothConsented() bool {
	return m.UserAConsented && m.UserBConsented
}

// Ladder maps a blur percent to the asset key rendered at that strength.
type Ladder map[int]string

// Photo is one uploaded image and its pre-rendered derivatives.
//
// BlurredKey is the fixed "blurred" variant served during the theatrical
// phase; Ladder holds the discrete blur steps.
type Photo struct {
	ID          string                    `gorm:"primaryKey;size:36"`
	UserID      string                    `gorm:"size:64;not null;uniqueIndex:idx_photo_user_pos,priority:1"`
	Position    int                       `gorm:"not null;uniqueIndex:idx_photo_user_pos,priority:2"`
	OriginalKey string                    `gorm:"size:255;not null"`
	BlurredKey  string                    `gorm:"size:255;not null"`
	Ladder      datatypes.JSONType[Ladder] `gorm:"not null"`
	CreatedAt   time.Time                 `gorm:"autoCreateTime"`
}

// Channel is a chat conversation tied to a match.
type Channel struct {
	ID        string                      `gorm:"primaryKey;size:64"`
	MatchID   string                      `gorm:"size:36;index"`
	Members   datatypes.JSONSlice[string] `gorm:"not null"`
	Frozen    bool                        `gorm:"not null"`
	CreatedAt time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime"`
}

// ChannelMessage is one chat message. System messages have an empty SenderID.
type ChannelMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ChannelID string    `gorm:"size:64;not null;index"`
	SenderID  string    `gorm:"size:64"`
	Text      string    `gorm:"size:2000;not null"`
	System    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&User{},
		&SwipeCounter{},
		&SwipeRecord{},
		&Match{},
		&Photo{},
		&Channel{},
		&ChannelMessage{},
	}
}
