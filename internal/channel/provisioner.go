// Package channel provisions the chat conversation of a match.
//
// Provisioning runs after the match transaction commits and is idempotent:
// the channel id is derived from the two participants, an existing channel
// is reused, and the "matched" message is gated by a flag on the match.
package channel

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/chat"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/repository"
)

// MatchedMessage is posted once when a match's channel is first provisioned.
const MatchedMessage = "You matched! Say hi and get the conversation going."

// ChannelID returns the canonical channel id of a pair. It does not depend
// on argument order.
func ChannelID(a, b string) string {
	first, second, _ := db.PairKey(a, b)
	sum := blake2b.Sum256([]byte(first + "\x00" + second))
	return "match-" + hex.EncodeToString(sum[:])[:32]
}

type Provisioner struct {
	chat    chat.Client
	matches *repository.MatchRepository
	log     *slog.Logger
}

func NewProvisioner(client chat.Client, database *gorm.DB, log *slog.Logger) *Provisioner {
	return &Provisioner{
		chat:    client,
		matches: repository.NewMatchRepository(database),
		log:     log,
	}
}

// Provision creates or reuses the channel of m, tags it with the match id,
// records the channel id on the match and posts the matched message once.
func (p *Provisioner) Provision(ctx context.Context, m *db.Match) (string, error) {
	id := ChannelID(m.UserAID, m.UserBID)

	err := p.chat.CreateChannel(ctx, id, []string{m.UserAID, m.UserBID})
	switch {
	case errors.Is(err, chat.ErrChannelExists):
		p.log.Debug("reusing chat channel", "channel", id, "match", m.ID)
	case err != nil:
		return "", fmt.Errorf("create channel: %w", err)
	}

	if err := p.chat.TagChannel(ctx, id, m.ID); err != nil {
		return "", fmt.Errorf("tag channel: %w", err)
	}
	if m.ChannelID != id {
		if err := p.matches.SetChannelID(ctx, m.ID, id); err != nil {
			return "", fmt.Errorf("store channel id: %w", err)
		}
		m.ChannelID = id
	}

	if err := p.postOnce(ctx, m.ID, id, repository.FlagMatchedMessageSent, MatchedMessage); err != nil {
		return "", err
	}
	return id, nil
}

// Ensure returns the channel of an active match, provisioning it again if an
// earlier attempt failed.
func (p *Provisioner) Ensure(ctx context.Context, matchID string) (string, error) {
	m, err := p.matches.Get(ctx, matchID)
	if err != nil {
		return "", err
	}
	if !m.IsActive {
		return m.ChannelID, nil
	}
	return p.Provision(ctx, m)
}

func (p *Provisioner) Freeze(ctx context.Context, m *db.Match) error {
	id := m.ChannelID
	if id == "" {
		id = ChannelID(m.UserAID, m.UserBID)
	}
	err := p.chat.FreezeChannel(ctx, id)
	if errors.Is(err, chat.ErrChannelNotFound) {
		return nil
	}
	return err
}

// PostSystemMessage posts text to the match channel once per flag.
func (p *Provisioner) PostSystemMessage(ctx context.Context, m *db.Match, flag repository.Flag, text string) error {
	id := m.ChannelID
	if id == "" {
		var err error
		if id, err = p.Provision(ctx, m); err != nil {
			return err
		}
	}
	return p.postOnce(ctx, m.ID, id, flag, text)
}

// postOnce claims flag, sends, and releases the claim if the send fails so
// a retry can try again.
func (p *Provisioner) postOnce(ctx context.Context, matchID, channelID string, flag repository.Flag, text string) error {
	claimed, err := p.matches.ClaimFlag(ctx, matchID, flag)
	if err != nil {
		return fmt.Errorf("claim %s: %w", flag, err)
	}
	if !claimed {
		return nil
	}
	if err := p.chat.SendSystemMessage(ctx, channelID, text); err != nil {
		if relErr := p.matches.ReleaseFlag(ctx, matchID, flag); relErr != nil {
			p.log.Error("release flag failed", "match", matchID, "flag", flag, "err", relErr)
		}
		return fmt.Errorf("send system message: %w", err)
	}
	return nil
}
