package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/assets"
	"github.com/oggyb/campus-match/internal/cache"
	"github.com/oggyb/campus-match/internal/channel"
	"github.com/oggyb/campus-match/internal/chat"
	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/consent"
	"github.com/oggyb/campus-match/internal/disclosure"
	"github.com/oggyb/campus-match/internal/match"
	"github.com/oggyb/campus-match/internal/notify"
	"github.com/oggyb/campus-match/internal/quota"
	"github.com/oggyb/campus-match/internal/worker"
)

// AppContext holds shared dependencies (DB, Redis, Logger) and the domain
// services built on top of them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger

	Tasks      *worker.Pool
	Notifier   notify.Notifier
	Signer     *assets.Signer
	Quota      *quota.Service
	Channels   *channel.Provisioner
	Matches    *match.Engine
	Disclosure *disclosure.Engine
	Uploader   *disclosure.Uploader
	Consent    *consent.Gate
}

// New wires the domain services and starts the side-effect workers. Call
// Close on shutdown to drain them.
func New(
	cfg *config.Config,
	db *gorm.DB,
	rdb *cache.RedisCache,
	logger *slog.Logger,
	chatClient chat.Client,
	store assets.Store,
) (*AppContext, error) {
	loc, err := cfg.Swipe.Location()
	if err != nil {
		return nil, err
	}

	tasks := worker.NewPool(cfg.Worker, logger)
	tasks.Start()

	notifier := notify.NewRedisOutbox(rdb)
	signer := assets.NewSigner(cfg.Assets.SigningKey, cfg.HTTP.PublicBaseURL, cfg.Assets.URLTTL)
	policy := disclosure.PolicyFromConfig(cfg.Disclosure)

	quotaSvc := quota.NewService(db, rdb, quota.Policy{Limit: cfg.Swipe.DailyLimit, Location: loc}, logger)
	channels := channel.NewProvisioner(chatClient, db, logger)
	matches := match.NewEngine(db, match.Config{
		MaxTxAttempts:    cfg.Swipe.MaxTxAttempts,
		ConsentThreshold: cfg.Disclosure.Phase1Threshold,
	}, quotaSvc, rdb, channels, notifier, tasks, logger)

	renderer := disclosure.Renderer{MaxSigma: cfg.Disclosure.MaxSigma, BaselineBlur: cfg.Disclosure.Phase2Start}

	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Tasks:      tasks,
		Notifier:   notifier,
		Signer:     signer,
		Quota:      quotaSvc,
		Channels:   channels,
		Matches:    matches,
		Disclosure: disclosure.NewEngine(db, policy, signer, logger),
		Uploader:   disclosure.NewUploader(db, store, renderer, logger),
		Consent: consent.NewGate(db, policy, consent.Options{DeclineUnmatches: cfg.Consent.DeclineUnmatches},
			channels, matches, notifier, tasks, logger),
	}, nil
}

// Close drains queued side effects.
func (a *AppContext) Close() {
	a.Tasks.Stop()
}
