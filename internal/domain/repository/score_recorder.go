package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// PostgresScoreRecorder stores site scores in the analyses table. The table is
// owned by another service; only the columns below are written.
type PostgresScoreRecorder struct {
	db *sqlx.DB
}

func NewPostgresScoreRecorder(db *sqlx.DB) *PostgresScoreRecorder {
	return &PostgresScoreRecorder{db: db}
}

// analysisRow is one analyses insert.
type analysisRow struct {
	LocationName     string  `db:"location_name"`
	Latitude         float64 `db:"latitude"`
	Longitude        float64 `db:"longitude"`
	SuitabilityScore float64 `db:"suitability_score"`
	ExtraData        string  `db:"extra_data"`
}

type extraData struct {
	RadiusM   float64                       `json:"radius_m"`
	StartDate string                        `json:"start_date"`
	EndDate   string                        `json:"end_date"`
	Features  map[string]model.FeatureScore `json:"features"`
}

// newAnalysisRow maps a record onto the table. The score is stored on a 0-100
// scale rounded to two decimals.
func newAnalysisRow(rec model.ScoreRecord) (analysisRow, error) {
	features := make(map[string]model.FeatureScore, 4)
	for _, f := range rec.Result.Features() {
		features[f.Name] = f
	}

	extra, err := json.Marshal(extraData{
		RadiusM:   rec.Area.RadiusM,
		StartDate: rec.Window.Start.Format(model.DateLayout),
		EndDate:   rec.Window.End.Format(model.DateLayout),
		Features:  features,
	})
	if err != nil {
		return analysisRow{}, fmt.Errorf("failed to marshal extra data: %w", err)
	}

	name := rec.LocationName
	if name == "" {
		name = fmt.Sprintf("%.5f,%.5f", rec.Area.Lat, rec.Area.Lon)
	}

	return analysisRow{
		LocationName:     name,
		Latitude:         rec.Area.Lat,
		Longitude:        rec.Area.Lon,
		SuitabilityScore: math.Round(rec.Result.FinalScore*100*100) / 100,
		ExtraData:        string(extra),
	}, nil
}

func (r *PostgresScoreRecorder) SaveScore(ctx context.Context, rec model.ScoreRecord) error {
	const query = `
		INSERT INTO analyses (
			location_name, latitude, longitude,
			suitability_score, extra_data, created_at
		) VALUES (
			:location_name, :latitude, :longitude,
			:suitability_score, :extra_data, NOW()
		)`

	row, err := newAnalysisRow(rec)
	if err != nil {
		return err
	}

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}
