package main

import (
	"context"
	"fmt"

	"github.com/Solar-crew/solar-detector/internal/config"
	"github.com/Solar-crew/solar-detector/internal/core"
	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/domain/repository"
	"github.com/Solar-crew/solar-detector/internal/infrastructure/sentinel"
	"github.com/Solar-crew/solar-detector/internal/logging"
)

// app holds the wired collaborators of one process.
type app struct {
	service *core.ScoringService
	db      *repository.PostgresRepository
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close database")
		}
	}
}

func newProximity(cfg *config.Config) model.ProximityProvider {
	if cfg.Proximity.Source == config.ProximityOverpass {
		return repository.NewOverpassRepository(cfg.Overpass)
	}
	return repository.NewStaticProximity()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if !cfg.HasCredentials() {
		logging.Warn().Msg("CDS_USERNAME/CDS_PASSWORD are not set, provider login will fail")
	}

	a := &app{}
	opts := []core.ServiceOption{
		core.WithThresholds(cfg.Thresholds),
		core.WithCloudOptions(cfg.Cloud),
		core.WithSlopeOptions(cfg.Slope),
	}

	if cfg.Database.SaveResults {
		db, err := repository.NewPostgresRepository(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		a.db = db
		opts = append(opts, core.WithRecorder(repository.NewPostgresScoreRecorder(db.DB())))
	}

	a.service = core.NewScoringService(
		sentinel.NewClient(cfg.Provider),
		newProximity(cfg),
		opts...,
	)

	logging.Info().
		Str("proximity", cfg.Proximity.Source).
		Bool("save_results", cfg.Database.SaveResults).
		Msg("scoring service ready")
	return a, nil
}
