package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
)

// Store is a Client backed by the service database.
type Store struct {
	db  *gorm.DB
	log *slog.Logger

	mu   sync.RWMutex
	hook MessageHook
}

func NewStore(database *gorm.DB, log *slog.Logger) *Store {
	return &Store{db: database, log: log}
}

// OnNewMessage registers the hook run after every user message.
func (s *Store) OnNewMessage(h MessageHook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

func (s *Store) CreateChannel(ctx context.Context, channelID string, members []string) error {
	ch := db.Channel{
		ID:      channelID,
		Members: datatypes.JSONSlice[string](slices.Clone(members)),
	}
	err := s.db.WithContext(ctx).Create(&ch).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrChannelExists
	}
	return err
}

func (s *Store) TagChannel(ctx context.Context, channelID, matchID string) error {
	return s.update(ctx, channelID, "match_id", matchID)
}

func (s *Store) FreezeChannel(ctx context.Context, channelID string) error {
	return s.update(ctx, channelID, "frozen", true)
}

// SendSystemMessage posts text with no sender. System messages are accepted
// on frozen channels and never reach the message hook.
func (s *Store) SendSystemMessage(ctx context.Context, channelID, text string) error {
	if _, err := s.channel(ctx, channelID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&db.ChannelMessage{
		ChannelID: channelID,
		Text:      text,
		System:    true,
	}).Error
}

// PostMessage stores a user message and runs the message hook. Hook
// failures are logged; the message itself is already delivered.
func (s *Store) PostMessage(ctx context.Context, channelID, senderID, text string) error {
	ch, err := s.channel(ctx, channelID)
	if err != nil {
		return err
	}
	if ch.Frozen {
		return ErrChannelFrozen
	}
	if !slices.Contains(ch.Members, senderID) {
		return ErrNotMember
	}

	msg := db.ChannelMessage{ChannelID: channelID, SenderID: senderID, Text: text}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return err
	}

	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook != nil && ch.MatchID != "" {
		if err := hook(ctx, ch.MatchID); err != nil {
			s.log.Warn("message hook failed", "channel", channelID, "match", ch.MatchID, "err", err)
		}
	}
	return nil
}

// Messages returns the last limit messages of a channel, oldest first.
func (s *Store) Messages(ctx context.Context, channelID string, limit int) ([]db.ChannelMessage, error) {
	var out []db.ChannelMessage
	err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	slices.Reverse(out)
	return out, err
}

// Channel loads a channel by id.
func (s *Store) Channel(ctx context.Context, channelID string) (*db.Channel, error) {
	return s.channel(ctx, channelID)
}

func (s *Store) channel(ctx context.Context, channelID string) (*db.Channel, error) {
	var ch db.Channel
	err := s.db.WithContext(ctx).Where("id = ?", channelID).Take(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *Store) update(ctx context.Context, channelID, column string, value any) error {
	res := s.db.WithContext(ctx).
		Model(&db.Channel{}).
		Where("id = ?", channelID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.channel(ctx, channelID); err != nil {
			return err
		}
	}
	return nil
}
