package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresRepository is the gorm-backed Store.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Puzzle{},
		&models.Run{},
		&models.LeaderboardEntry{},
		&models.TimingAnomaly{},
	)
}

// SeedPuzzles inserts the fixed puzzle set, skipping ids that already exist.
// Safe to call on every process start.
func (r *PostgresRepository) SeedPuzzles(ctx context.Context) error {
	for _, p := range seedSet {
		if err := validatePuzzle(p); err != nil {
			return err
		}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&p).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// ListPuzzles returns all puzzles without their solution strings.
func (r *PostgresRepository) ListPuzzles(ctx context.Context) ([]models.PuzzleSummary, error) {
	var summaries []models.PuzzleSummary
	err := r.db.WithContext(ctx).
		Model(&models.Puzzle{}).
		Select("id", "puzzle_string").
		Order("id ASC").
		Find(&summaries).Error
	return summaries, err
}

// GetPuzzle returns the full record including the solution. Internal use only.
func (r *PostgresRepository) GetPuzzle(ctx context.Context, id string) (*models.Puzzle, error) {
	var puzzle models.Puzzle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&puzzle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPuzzleNotFound
		}
		return nil, err
	}
	return &puzzle, nil
}

// CreateRun persists a freshly started run.
func (r *PostgresRepository) CreateRun(ctx context.Context, run *models.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetRun retrieves a run by id.
func (r *PostgresRepository) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// CompleteRun applies the submission result as one UPDATE statement, so a
// run is never observable half-updated.
func (r *PostgresRepository) CompleteRun(ctx context.Context, runID string, result CompletedRun) (*models.Run, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"elapsed_ms":   result.ElapsedMs,
			"mistakes":     result.Mistakes,
			"hints":        result.Hints,
			"final_ms":     result.FinalMs,
			"status":       models.RunStatusCompleted,
			"finished_utc": result.FinishedUtc,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRunNotFound
	}
	return r.GetRun(ctx, runID)
}

// UpsertBest inserts or replaces a player's best entry, but only when the
// candidate beats it. The comparison runs inside the INSERT ... ON CONFLICT
// DO UPDATE ... WHERE, so concurrent submissions for one name cannot lose
// the true minimum.
func (r *PostgresRepository) UpsertBest(ctx context.Context, name, runID string, finalMs int, finishedUtc time.Time) error {
	entry := models.LeaderboardEntry{
		Name:            name,
		BestRunID:       runID,
		BestFinalMs:     finalMs,
		BestFinishedUtc: finishedUtc,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"best_run_id", "best_final_ms", "best_finished_utc"}),
		Where: clause.Where{Exprs: []clause.Expression{gorm.Expr(
			"excluded.best_final_ms < leaderboard_entries.best_final_ms" +
				" OR (excluded.best_final_ms = leaderboard_entries.best_final_ms" +
				" AND excluded.best_finished_utc < leaderboard_entries.best_finished_utc)")}},
	}).Create(&entry).Error
}

// GetLeaderboard returns entries ordered by best final time ascending,
// ties by earliest finish, further ties by name.
func (r *PostgresRepository) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).
		Order("best_final_ms ASC, best_finished_utc ASC, name ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Clear deletes all leaderboard entries and runs in one transaction.
// Administrative reset, irreversible.
func (r *PostgresRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM leaderboard_entries").Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM runs").Error
	})
}

// GetStats aggregates over completed runs.
func (r *PostgresRepository) GetStats(ctx context.Context) (*models.Stats, error) {
	var row struct {
		CompletedRuns   int64
		DistinctPlayers int64
		AvgFinalMs      sql.NullFloat64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Run{}).
		Select("count(*) as completed_runs, count(distinct name) as distinct_players, avg(final_ms) as avg_final_ms").
		Where("status = ?", models.RunStatusCompleted).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{
		CompletedRuns:   row.CompletedRuns,
		DistinctPlayers: row.DistinctPlayers,
	}
	if row.AvgFinalMs.Valid {
		stats.AvgFinalMs = int64(math.Round(row.AvgFinalMs.Float64))
	}
	return stats, nil
}

// InsertAnomaly records a timing-anomaly audit row.
func (r *PostgresRepository) InsertAnomaly(ctx context.Context, anomaly *models.TimingAnomaly) error {
	return r.db.WithContext(ctx).Create(anomaly).Error
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
