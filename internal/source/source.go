// Package source loads the two input relations, households and motion
// events, from wherever they live: a SQLite export, a directory of CSV
// files, a BoltDB store or an HTTP endpoint.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"occupancy-classifier/internal/common"
	"occupancy-classifier/internal/model"
	"occupancy-classifier/internal/storage"
)

// Relations is the raw pipeline input.
type Relations struct {
	Households []model.Household   `json:"households"`
	Motion     []model.MotionEvent `json:"motion"`
}

// Config selects and addresses a data source.
type Config struct {
	Kind    string
	Path    string
	URL     string
	Timeout time.Duration
}

// Load reads both relations from the configured source.
func Load(ctx context.Context, cfg Config) (*Relations, error) {
	start := time.Now()

	var (
		rel *Relations
		err error
	)
	switch cfg.Kind {
	case common.SourceSQLite:
		rel, err = LoadSQLite(ctx, cfg.Path)
	case common.SourceCSV:
		rel, err = LoadCSV(cfg.Path)
	case common.SourceBoltDB:
		var store *storage.Store
		if store, err = storage.New(cfg.Path); err == nil {
			rel, err = LoadBolt(store)
			store.Close()
		}
	case common.SourceHTTP:
		rel, err = NewClient(cfg.URL, cfg.Timeout).Fetch(ctx)
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s source: %w", cfg.Kind, err)
	}

	log.Info().
		Str("source", cfg.Kind).
		Int("households", len(rel.Households)).
		Int("motion_events", len(rel.Motion)).
		Dur("elapsed", time.Since(start)).
		Msg("Relations loaded")

	return rel, nil
}

// LoadBolt reads both relations from an open store. Only events of stored
// households are read; others could never join a label.
func LoadBolt(store *storage.Store) (*Relations, error) {
	households, err := store.Households()
	if err != nil {
		return nil, fmt.Errorf("read households: %w", err)
	}
	var motion []model.MotionEvent
	for _, h := range households {
		events, err := store.MotionEventsFor(h.ID)
		if err != nil {
			return nil, fmt.Errorf("read motion events of household %d: %w", h.ID, err)
		}
		motion = append(motion, events...)
	}
	return &Relations{Households: households, Motion: motion}, nil
}

// WriteBolt stores both relations.
func WriteBolt(store *storage.Store, rel *Relations) error {
	for _, h := range rel.Households {
		if err := store.PutHousehold(h); err != nil {
			return fmt.Errorf("store household %d: %w", h.ID, err)
		}
	}
	return store.PutMotion(rel.Motion...)
}
