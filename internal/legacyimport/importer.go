// Package legacyimport loads match documents exported from the old document
// store into the relational schema.
package legacyimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/repository"
)

// Result counts what happened to each document of an export.
type Result struct {
	Imported int
	Existing int
	Skipped  int
}

type Importer struct {
	db  *gorm.DB
	log *slog.Logger
}

func New(database *gorm.DB, log *slog.Logger) *Importer {
	return &Importer{db: database, log: log}
}

// Import reads a JSON array of legacy match documents from r. Documents that
// fail to normalise, reference unknown users, or would give a non-premium
// participant a second active match are skipped and logged. Matches already
// present by id are left untouched, so an export can be replayed.
func (i *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	dec := json.NewDecoder(r)
	if tok, err := dec.Token(); err != nil {
		return res, fmt.Errorf("read export: %w", err)
	} else if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return res, fmt.Errorf("read export: expected a JSON array")
	}

	for dec.More() {
		var doc db.LegacyMatchDocument
		if err := dec.Decode(&doc); err != nil {
			return res, fmt.Errorf("decode document %d: %w", res.Imported+res.Existing+res.Skipped, err)
		}

		m, err := db.NormalizeMatchDocument(doc)
		if err != nil {
			i.log.Warn("skipping legacy match", "id", doc.ID, "err", err)
			res.Skipped++
			continue
		}

		created, err := i.importOne(ctx, &m)
		switch {
		case err != nil:
			i.log.Warn("skipping legacy match", "id", m.ID, "err", err)
			res.Skipped++
		case created:
			res.Imported++
		default:
			res.Existing++
		}
	}
	return res, nil
}

func (i *Importer) importOne(ctx context.Context, m *db.Match) (bool, error) {
	created := false
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		matches := repository.NewMatchRepository(tx)

		locked, err := users.Lock(ctx, m.UserAID, m.UserBID)
		if err != nil {
			return err
		}
		if len(locked) != 2 {
			return fmt.Errorf("unknown participant in %s/%s", m.UserAID, m.UserBID)
		}

		if _, err := matches.Get(ctx, m.ID); err == nil {
			return nil
		} else if !errors.Is(err, svcErr.ErrMatchNotFound) {
			return err
		}

		if m.IsActive {
			for _, u := range locked {
				if u.IsPremium {
					continue
				}
				active, err := matches.FindActiveByUser(ctx, u.ID)
				if err != nil {
					return err
				}
				if active != nil {
					return fmt.Errorf("%s already has active match %s", u.ID, active.ID)
				}
			}
		}

		if err := matches.Create(ctx, m); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("pair already has an active match: %w", err)
			}
			return err
		}
		created = true
		if !m.IsActive {
			return nil
		}

		for _, u := range locked {
			u.AddMatch(m.ID)
			if !u.IsPremium {
				u.IsAvailable = false
			}
			if err := users.SaveMembership(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}
