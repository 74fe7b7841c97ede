package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"
	"github.com/GabrielChurchill/YudokuChallenge/internal/scoring"
	"github.com/GabrielChurchill/YudokuChallenge/internal/worker"

	"github.com/google/uuid"
)

// ErrRunAlreadyCompleted is returned by SubmitRun when the resubmission
// guard is enabled and the run has already been completed.
var ErrRunAlreadyCompleted = errors.New("run already completed")

// ValidationError lists the offending input fields. The request causing it
// has no side effects.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// Notifier is the leaderboard-changed fan-out. Implemented by the
// websocket hub; injected so the service never touches connection state.
type Notifier interface {
	Notify()
}

// Options tunes the run lifecycle.
type Options struct {
	// RejectResubmission rejects submits for runs already completed.
	// Default false: a resubmission re-applies the update and re-upserts
	// the leaderboard, matching the original behavior.
	RejectResubmission bool
	// DefaultLeaderboardLimit bounds leaderboard reads when the caller
	// passes no limit. Defaults to 1000.
	DefaultLeaderboardLimit int
	// DriftToleranceMs is the allowed gap between client-reported and
	// server-observed elapsed time before an anomaly is recorded.
	// Defaults to 5000.
	DriftToleranceMs int64
}

// GameService drives the run lifecycle and the leaderboard.
type GameService struct {
	store    repository.Store
	versions *repository.RedisRepository
	pool     *worker.Pool
	notifier Notifier
	opts     Options
}

// NewGameService creates a new game service. versions, pool and notifier
// may each be nil; the corresponding side channel is then skipped.
func NewGameService(
	store repository.Store,
	versions *repository.RedisRepository,
	pool *worker.Pool,
	notifier Notifier,
	opts Options,
) *GameService {
	if opts.DefaultLeaderboardLimit <= 0 {
		opts.DefaultLeaderboardLimit = 1000
	}
	if opts.DriftToleranceMs <= 0 {
		opts.DriftToleranceMs = 5000
	}
	return &GameService{
		store:    store,
		versions: versions,
		pool:     pool,
		notifier: notifier,
		opts:     opts,
	}
}

// ListPuzzles returns the catalog without solutions.
func (s *GameService) ListPuzzles(ctx context.Context) ([]models.PuzzleSummary, error) {
	return s.store.ListPuzzles(ctx)
}

// StartRun validates the player input, assigns a puzzle uniformly at random
// and creates an in-progress run. The solution is never returned.
func (s *GameService) StartRun(ctx context.Context, req models.StartRunRequest) (*models.StartRunResponse, error) {
	var bad []string
	if req.DeviceID == "" {
		bad = append(bad, "deviceId")
	}
	if req.Name == "" || len(req.Name) > 30 {
		bad = append(bad, "name")
	}
	if req.Consent == nil {
		bad = append(bad, "consent")
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	puzzles, err := s.store.ListPuzzles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list puzzles: %w", err)
	}
	if len(puzzles) == 0 {
		return nil, errors.New("puzzle catalog is empty")
	}
	picked := puzzles[rand.Intn(len(puzzles))]

	run := &models.Run{
		RunID:      uuid.NewString(),
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		Consent:    *req.Consent,
		PuzzleID:   picked.ID,
		StartedUtc: time.Now().UTC(),
		Status:     models.RunStatusInProgress,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return &models.StartRunResponse{
		RunID:      run.RunID,
		PuzzleID:   run.PuzzleID,
		StartedUtc: run.StartedUtc,
	}, nil
}

// SubmitRun finalizes a run: scores the client-reported numbers, applies
// the completion as one atomic update, conditionally upserts the
// leaderboard and notifies live viewers. The client-reported elapsed time
// is authoritative; drift beyond tolerance is only recorded, never
// rejected.
func (s *GameService) SubmitRun(ctx context.Context, req models.SubmitRunRequest) (*models.SubmitRunResponse, error) {
	var bad []string
	if req.RunID == "" {
		bad = append(bad, "runId")
	}
	if req.ElapsedMs == nil || *req.ElapsedMs < 0 {
		bad = append(bad, "elapsedMs")
	}
	if req.Mistakes < 0 {
		bad = append(bad, "mistakes")
	}
	if req.Hints < 0 {
		bad = append(bad, "hints")
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	run, err := s.store.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if s.opts.RejectResubmission && run.Status == models.RunStatusCompleted {
		return nil, ErrRunAlreadyCompleted
	}

	now := time.Now().UTC()
	elapsedMs := *req.ElapsedMs
	serverElapsedMs := now.Sub(run.StartedUtc).Milliseconds()
	if drift := serverElapsedMs - int64(elapsedMs); drift > s.opts.DriftToleranceMs || drift < -s.opts.DriftToleranceMs {
		log.Printf("Timing anomaly detected for run %s: server=%dms, client=%dms", run.RunID, serverElapsedMs, elapsedMs)
		s.recordAnomaly(ctx, run, serverElapsedMs, elapsedMs, now)
	}

	finalMs := scoring.FinalMs(elapsedMs, req.Mistakes, req.Hints)

	if _, err := s.store.CompleteRun(ctx, run.RunID, repository.CompletedRun{
		ElapsedMs:   elapsedMs,
		Mistakes:    req.Mistakes,
		Hints:       req.Hints,
		FinalMs:     finalMs,
		FinishedUtc: now,
	}); err != nil {
		return nil, err
	}

	if err := s.store.UpsertBest(ctx, run.Name, run.RunID, finalMs, now); err != nil {
		return nil, fmt.Errorf("failed to update leaderboard: %w", err)
	}

	s.leaderboardChanged(ctx)

	return &models.SubmitRunResponse{Success: true, FinalMs: finalMs}, nil
}

// recordAnomaly hands the audit row to the worker pool, or writes it
// directly when no pool is wired. Failures are logged and swallowed.
func (s *GameService) recordAnomaly(ctx context.Context, run *models.Run, serverElapsedMs int64, clientElapsedMs int, now time.Time) {
	anomaly := models.TimingAnomaly{
		RunID:           run.RunID,
		DeviceID:        run.DeviceID,
		ServerElapsedMs: serverElapsedMs,
		ClientElapsedMs: clientElapsedMs,
		DetectedUtc:     now,
	}
	if s.pool != nil {
		_ = s.pool.Submit(worker.AnomalyTask{Anomaly: anomaly})
		return
	}
	if err := s.store.InsertAnomaly(ctx, &anomaly); err != nil {
		log.Printf("Failed to record timing anomaly for run %s: %v", run.RunID, err)
	}
}

// ValidateCell decides a single cell purely positionally against the stored
// solution. Out-of-range coordinates or values are always invalid rather
// than an error.
func (s *GameService) ValidateCell(ctx context.Context, req models.ValidateCellRequest) (*models.ValidateCellResponse, error) {
	puzzle, err := s.store.GetPuzzle(ctx, req.PuzzleID)
	if err != nil {
		return nil, err
	}
	if req.Row < 0 || req.Row > 8 || req.Col < 0 || req.Col > 8 || req.Value < 1 || req.Value > 9 {
		return &models.ValidateCellResponse{Valid: false}, nil
	}
	want := puzzle.SolutionString[req.Row*9+req.Col]
	return &models.ValidateCellResponse{Valid: want == byte('0'+req.Value)}, nil
}

// GetLeaderboard returns the ranked entries, at most limit of them.
// A non-positive limit falls back to the configured default.
func (s *GameService) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.opts.DefaultLeaderboardLimit
	}
	return s.store.GetLeaderboard(ctx, limit)
}

// Reset clears all leaderboard entries and runs, then notifies viewers.
func (s *GameService) Reset(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.leaderboardChanged(ctx)
	return nil
}

// GetStats aggregates over completed runs.
func (s *GameService) GetStats(ctx context.Context) (*models.Stats, error) {
	return s.store.GetStats(ctx)
}

// HealthCheck pings the store and, when wired, redis.
func (s *GameService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	if s.versions != nil {
		if err := s.versions.Ping(ctx); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}
	return nil
}

// leaderboardChanged bumps the redis version counter and pushes the live
// notification. Both are fire-and-forget relative to the triggering
// request.
func (s *GameService) leaderboardChanged(ctx context.Context) {
	if s.versions != nil {
		if err := s.versions.BumpVersion(ctx); err != nil {
			log.Printf("Failed to bump leaderboard version: %v", err)
		}
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
}
