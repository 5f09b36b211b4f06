// Package consent is the two-party agreement that unlocks real photo
// disclosure. Each participant moves from not consented to consented
// exactly once; declining is a separate, explicit transition.
package consent

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/channel"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/disclosure"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/match"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/repository"
	"github.com/oggyb/campus-match/internal/worker"
)

// BothConsentedMessage is posted to the match channel once per match.
const BothConsentedMessage = "Both of you have decided to continue getting to know one another."

// Unmatcher ends a match. *match.Engine satisfies it.
type Unmatcher interface {
	Unmatch(ctx context.Context, userID, matchID, reason string) (*db.Match, error)
}

type UpdateResult struct {
	Success       bool
	BothConsented bool
	// Declined is set when the call was a decline.
	Declined bool
}

type Status struct {
	MatchID                 string
	User1ID                 string
	User2ID                 string
	User1Consented          bool
	User2Consented          bool
	BothConsented           bool
	MessageCount            int64
	ShouldShowConsentScreen bool
}

type Options struct {
	// DeclineUnmatches ends the match when a participant declines. Otherwise
	// the match stays active with its channel frozen.
	DeclineUnmatches bool
}

type Gate struct {
	db       *gorm.DB
	policy   disclosure.Policy
	opts     Options
	channels *channel.Provisioner
	unmatch  Unmatcher
	notifier notify.Notifier
	tasks    match.Dispatcher
	log      *slog.Logger
}

func NewGate(
	database *gorm.DB,
	policy disclosure.Policy,
	opts Options,
	channels *channel.Provisioner,
	unmatcher Unmatcher,
	notifier notify.Notifier,
	tasks match.Dispatcher,
	log *slog.Logger,
) *Gate {
	return &Gate{
		db:       database,
		policy:   policy,
		opts:     opts,
		channels: channels,
		unmatch:  unmatcher,
		notifier: notifier,
		tasks:    tasks,
		log:      log,
	}
}

// Update applies userID's answer. consented=true is idempotent; consented=false
// is a decline and is rejected once the user has consented.
func (g *Gate) Update(ctx context.Context, matchID, userID string, consented bool) (*UpdateResult, error) {
	if !consented {
		return g.Decline(ctx, matchID, userID)
	}

	var (
		m      *db.Match
		became bool
	)
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)
		var err error
		if m, err = g.lockParticipant(ctx, matches, matchID, userID); err != nil {
			return err
		}
		if m.ConsentOf(userID) {
			return nil
		}
		before := m.BothConsented()
		setConsent(m, userID)
		became = !before && m.BothConsented()
		return matches.Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("consent given", "match", m.ID, "user", userID, "both", m.BothConsented())
	if m.BothConsented() {
		// flag-gated, so a repeated call retries a message that failed to send
		snapshot := *m
		g.submit(worker.Task{Name: "both-consented-message", Run: func(ctx context.Context) error {
			return g.channels.PostSystemMessage(ctx, &snapshot, repository.FlagBothConsentedNotified, BothConsentedMessage)
		}})
	}
	if became {
		for _, id := range []string{m.UserAID, m.UserBID} {
			g.push(notify.BothConsented(id, m.ID))
		}
	}
	return &UpdateResult{Success: true, BothConsented: m.BothConsented()}, nil
}

// Decline records that userID will not continue. The channel is frozen and,
// with Options.DeclineUnmatches, the match is deactivated.
func (g *Gate) Decline(ctx context.Context, matchID, userID string) (*UpdateResult, error) {
	var (
		m      *db.Match
		replay bool
	)
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)
		var err error
		if m, err = g.lockParticipant(ctx, matches, matchID, userID); err != nil {
			if errors.Is(err, svcErr.ErrMatchDeclined) {
				return nil
			}
			if errors.Is(err, svcErr.ErrMatchInactive) && declinedBy(m, userID) {
				replay = true
				return nil
			}
			return err
		}
		if m.ConsentOf(userID) {
			return svcErr.ErrConsentFinal
		}
		m.DeclinedBy = userID
		return matches.Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	if replay {
		return &UpdateResult{Success: true, Declined: true}, nil
	}

	g.log.Info("consent declined", "match", m.ID, "user", userID, "unmatch", g.opts.DeclineUnmatches)
	if g.opts.DeclineUnmatches {
		if _, err := g.unmatch.Unmatch(ctx, userID, matchID, match.ReasonDeclined); err != nil {
			return nil, err
		}
	} else {
		snapshot := *m
		g.submit(worker.Task{Name: "freeze-channel", Run: func(ctx context.Context) error {
			return g.channels.Freeze(ctx, &snapshot)
		}})
	}
	return &UpdateResult{Success: true, Declined: true}, nil
}

// Status reports both participants' consent and whether viewerID should be
// shown the consent screen now.
func (g *Gate) Status(ctx context.Context, matchID, viewerID string) (*Status, error) {
	matches := repository.NewMatchRepository(g.db)
	m, err := matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasUser(viewerID) {
		return nil, svcErr.ErrNotParticipant
	}

	show := m.DeclinedBy == "" && g.policy.ShouldPromptConsent(m.IsActive, m.MessageCount, m.ConsentOf(viewerID))
	if show && !m.WarningShown {
		// the message hook normally claims this; imported matches may lag
		if _, err := matches.ClaimConsentPrompt(ctx, m.ID, g.policy.Phase1Threshold); err != nil {
			g.log.Warn("claim consent prompt failed", "match", m.ID, "err", err)
		}
	}

	return &Status{
		MatchID:                 m.ID,
		User1ID:                 m.UserAID,
		User2ID:                 m.UserBID,
		User1Consented:          m.UserAConsented,
		User2Consented:          m.UserBConsented,
		BothConsented:           m.BothConsented(),
		MessageCount:            m.MessageCount,
		ShouldShowConsentScreen: show,
	}, nil
}

// lockParticipant loads and locks an active, undeclined match of userID.
// Declined and inactive matches are returned together with their error.
func (g *Gate) lockParticipant(ctx context.Context, matches *repository.MatchRepository, matchID, userID string) (*db.Match, error) {
	m, err := matches.GetForUpdate(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasUser(userID) {
		return nil, svcErr.ErrNotParticipant
	}
	if !m.IsActive {
		return m, svcErr.ErrMatchInactive
	}
	if m.DeclinedBy != "" {
		return m, svcErr.ErrMatchDeclined
	}
	return m, nil
}

// declinedBy reports whether m was closed by userID's own decline.
func declinedBy(m *db.Match, userID string) bool {
	return m != nil && m.DeclinedBy == userID && m.DeactivationReason == match.ReasonDeclined
}

func setConsent(m *db.Match, userID string) {
	if userID == m.UserAID {
		m.UserAConsented = true
		return
	}
	m.UserBConsented = true
}

func (g *Gate) submit(t worker.Task) {
	if err := g.tasks.Submit(t); err != nil {
		g.log.Warn("side effect not queued", "task", t.Name, "err", err)
	}
}

func (g *Gate) push(n notify.Notification) {
	g.submit(worker.Task{Name: "push:" + n.Kind, Run: func(ctx context.Context) error {
		return g.notifier.Notify(ctx, n)
	}})
}
