// Package notify hands push notifications to the delivery pipeline.
//
// Delivery itself (device tokens, APNs/FCM) lives outside this service; the
// core only enqueues payloads.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oggyb/campus-match/internal/cache"
)

// Kinds of pushes the core emits.
const (
	KindNewMatch      = "new_match"
	KindConsentPrompt = "consent_prompt"
	KindBothConsented = "both_consented"
	KindSwipesReset   = "swipes_reset"
	KindUnmatched     = "unmatched"
)

// OutboxKey is the Redis list consumed by the push sender.
const OutboxKey = "push:outbox"

type Notification struct {
	UserID    string            `json:"userId"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// RedisOutbox LPUSHes JSON payloads onto OutboxKey.
type RedisOutbox struct {
	cache *cache.RedisCache
}

func NewRedisOutbox(rc *cache.RedisCache) *RedisOutbox {
	return &RedisOutbox{cache: rc}
}

func (o *RedisOutbox) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return o.cache.Client.LPush(ctx, OutboxKey, payload).Err()
}

// LogNotifier only logs. Used when Redis is not configured for pushes.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Log.Info("push", "user", n.UserID, "kind", n.Kind, "title", n.Title)
	return nil
}

// NewMatch is sent to both participants when a match forms.
func NewMatch(userID, matchID string) Notification {
	return Notification{
		UserID: userID,
		Kind:   KindNewMatch,
		Title:  "It's a match!",
		Body:   "You matched with someone. Say hi!",
		Data:   map[string]string{"matchId": matchID},
	}
}

func ConsentPrompt(userID, matchID string) Notification {
	return Notification{
		UserID: userID,
		Kind:   KindConsentPrompt,
		Title:  "Ready to see more?",
		Body:   "You've been chatting a while. Decide whether to keep getting to know each other.",
		Data:   map[string]string{"matchId": matchID},
	}
}

func BothConsented(userID, matchID string) Notification {
	return Notification{
		UserID: userID,
		Kind:   KindBothConsented,
		Title:  "You both said yes",
		Body:   "Photos will now come into focus as you keep talking.",
		Data:   map[string]string{"matchId": matchID},
	}
}

func SwipesReset(userID string) Notification {
	return Notification{
		UserID: userID,
		Kind:   KindSwipesReset,
		Title:  "Your swipes are back",
		Body:   "Your daily swipes have been refreshed.",
	}
}

func Unmatched(userID, matchID string) Notification {
	return Notification{
		UserID: userID,
		Kind:   KindUnmatched,
		Title:  "Match ended",
		Body:   "This conversation has ended.",
		Data:   map[string]string{"matchId": matchID},
	}
}
