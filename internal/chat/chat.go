// Package chat is the boundary to the chat system that carries match
// conversations. The core only creates, tags and freezes channels and posts
// system messages; user messages flow back through the new-message hook.
package chat

import (
	"context"
	"errors"
)

var (
	// ErrChannelExists is returned by CreateChannel when the id is taken.
	// Callers provisioning a deterministic id treat it as success.
	ErrChannelExists   = errors.New("chat channel already exists")
	ErrChannelNotFound = errors.New("chat channel not found")
	ErrChannelFrozen   = errors.New("chat channel is frozen")
	ErrNotMember       = errors.New("sender is not a channel member")
)

// Client is the subset of chat operations the core depends on.
type Client interface {
	CreateChannel(ctx context.Context, channelID string, members []string) error
	TagChannel(ctx context.Context, channelID, matchID string) error
	SendSystemMessage(ctx context.Context, channelID, text string) error
	FreezeChannel(ctx context.Context, channelID string) error
	PostMessage(ctx context.Context, channelID, senderID, text string) error
}

// MessageHook is invoked after a user message is stored in a channel tagged
// with a match.
type MessageHook func(ctx context.Context, matchID string) error
