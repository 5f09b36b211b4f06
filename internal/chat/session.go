package chat

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Dialer connects a chat client.
type Dialer func(ctx context.Context) (Client, error)

// ErrSessionClosed is returned once Close has been called.
var ErrSessionClosed = errors.New("chat session closed")

// Session owns one chat connection and dials it lazily on first use.
// Concurrent callers during the dial wait for it instead of connecting twice.
// Session itself satisfies Client.
type Session struct {
	dial Dialer

	mu           sync.Mutex
	client       Client
	initializing bool
	ready        chan struct{}
	closed       bool
}

func NewSession(dial Dialer) *Session {
	return &Session{dial: dial}
}

// Client returns the connected client, dialing if needed.
func (s *Session) Client(ctx context.Context) (Client, error) {
	for {
		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			return nil, ErrSessionClosed
		case s.client != nil:
			c := s.client
			s.mu.Unlock()
			return c, nil
		case s.initializing:
			ready := s.ready
			s.mu.Unlock()
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		s.initializing = true
		s.ready = make(chan struct{})
		s.mu.Unlock()

		c, err := s.dial(ctx)

		s.mu.Lock()
		s.initializing = false
		close(s.ready)
		if err == nil {
			s.client = c
		}
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Close drops the connection. A later call to Client fails.
func (s *Session) Close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.closed = true
	s.mu.Unlock()

	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Session) CreateChannel(ctx context.Context, channelID string, members []string) error {
	c, err := s.Client(ctx)
	if err != nil {
		return err
	}
	return c.CreateChannel(ctx, channelID, members)
}

func (s *Session) TagChannel(ctx context.Context, channelID, matchID string) error {
	c, err := s.Client(ctx)
	if err != nil {
		return err
	}
	return c.TagChannel(ctx, channelID, matchID)
}

func (s *Session) SendSystemMessage(ctx context.Context, channelID, text string) error {
	c, err := s.Client(ctx)
	if err != nil {
		return err
	}
	return c.SendSystemMessage(ctx, channelID, text)
}

func (s *Session) FreezeChannel(ctx context.Context, channelID string) error {
	c, err := s.Client(ctx)
	if err != nil {
		return err
	}
	return c.FreezeChannel(ctx, channelID)
}

func (s *Session) PostMessage(ctx context.Context, channelID, senderID, text string) error {
	c, err := s.Client(ctx)
	if err != nil {
		return err
	}
	return c.PostMessage(ctx, channelID, senderID, text)
}
