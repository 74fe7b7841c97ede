package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
)

// MemoryRepository is an in-process Store used when no database is
// configured, and as the test double. One mutex guards everything; the
// conditional upsert runs entirely inside the critical section, which is
// what makes it safe against concurrent same-name submissions.
type MemoryRepository struct {
	mu        sync.RWMutex
	puzzles   map[string]models.Puzzle
	puzzleIDs []string
	runs      map[string]models.Run
	board     map[string]models.LeaderboardEntry
	anomalies []models.TimingAnomaly
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		puzzles: make(map[string]models.Puzzle),
		runs:    make(map[string]models.Run),
		board:   make(map[string]models.LeaderboardEntry),
	}
}

// SeedPuzzles inserts the fixed puzzle set, skipping ids that already exist.
func (r *MemoryRepository) SeedPuzzles(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range seedSet {
		if err := validatePuzzle(p); err != nil {
			return err
		}
		if _, ok := r.puzzles[p.ID]; ok {
			continue
		}
		r.puzzles[p.ID] = p
		r.puzzleIDs = append(r.puzzleIDs, p.ID)
	}
	sort.Strings(r.puzzleIDs)
	return nil
}

// ListPuzzles returns all puzzles without their solution strings.
func (r *MemoryRepository) ListPuzzles(ctx context.Context) ([]models.PuzzleSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summaries := make([]models.PuzzleSummary, 0, len(r.puzzleIDs))
	for _, id := range r.puzzleIDs {
		p := r.puzzles[id]
		summaries = append(summaries, models.PuzzleSummary{ID: p.ID, PuzzleString: p.PuzzleString})
	}
	return summaries, nil
}

// GetPuzzle returns the full record including the solution.
func (r *MemoryRepository) GetPuzzle(ctx context.Context, id string) (*models.Puzzle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.puzzles[id]
	if !ok {
		return nil, ErrPuzzleNotFound
	}
	return &p, nil
}

// CreateRun persists a freshly started run.
func (r *MemoryRepository) CreateRun(ctx context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.RunID] = *run
	return nil
}

// GetRun retrieves a run by id.
func (r *MemoryRepository) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// CompleteRun applies the submission result as one update under the lock.
func (r *MemoryRepository) CompleteRun(ctx context.Context, runID string, result CompletedRun) (*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	elapsed := result.ElapsedMs
	final := result.FinalMs
	finished := result.FinishedUtc
	run.ElapsedMs = &elapsed
	run.Mistakes = result.Mistakes
	run.Hints = result.Hints
	run.FinalMs = &final
	run.FinishedUtc = &finished
	run.Status = models.RunStatusCompleted
	r.runs[runID] = run
	return &run, nil
}

// UpsertBest inserts or replaces a player's best entry when the candidate
// beats it: lower final time wins, equal final time with an earlier finish
// wins.
func (r *MemoryRepository) UpsertBest(ctx context.Context, name, runID string, finalMs int, finishedUtc time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.board[name]
	if ok && !beats(finalMs, finishedUtc, existing) {
		return nil
	}
	r.board[name] = models.LeaderboardEntry{
		Name:            name,
		BestRunID:       runID,
		BestFinalMs:     finalMs,
		BestFinishedUtc: finishedUtc,
	}
	return nil
}

func beats(finalMs int, finishedUtc time.Time, existing models.LeaderboardEntry) bool {
	if finalMs != existing.BestFinalMs {
		return finalMs < existing.BestFinalMs
	}
	return finishedUtc.Before(existing.BestFinishedUtc)
}

// GetLeaderboard returns entries ordered by best final time ascending,
// ties by earliest finish, further ties by name.
func (r *MemoryRepository) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.RLock()
	entries := make([]models.LeaderboardEntry, 0, len(r.board))
	for _, e := range r.board {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.BestFinalMs != b.BestFinalMs {
			return a.BestFinalMs < b.BestFinalMs
		}
		if !a.BestFinishedUtc.Equal(b.BestFinishedUtc) {
			return a.BestFinishedUtc.Before(b.BestFinishedUtc)
		}
		return a.Name < b.Name
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Clear deletes all leaderboard entries and runs.
func (r *MemoryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = make(map[string]models.Run)
	r.board = make(map[string]models.LeaderboardEntry)
	return nil
}

// GetStats aggregates over completed runs.
func (r *MemoryRepository) GetStats(ctx context.Context) (*models.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		count int64
		sum   float64
		names = make(map[string]struct{})
	)
	for _, run := range r.runs {
		if run.Status != models.RunStatusCompleted || run.FinalMs == nil {
			continue
		}
		count++
		sum += float64(*run.FinalMs)
		names[run.Name] = struct{}{}
	}
	stats := &models.Stats{
		CompletedRuns:   count,
		DistinctPlayers: int64(len(names)),
	}
	if count > 0 {
		stats.AvgFinalMs = int64(math.Round(sum / float64(count)))
	}
	return stats, nil
}

// InsertAnomaly records a timing-anomaly audit row.
func (r *MemoryRepository) InsertAnomaly(ctx context.Context, anomaly *models.TimingAnomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *anomaly
	a.ID = uint(len(r.anomalies) + 1)
	r.anomalies = append(r.anomalies, a)
	return nil
}

// Anomalies returns a copy of the recorded timing anomalies.
func (r *MemoryRepository) Anomalies() []models.TimingAnomaly {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.TimingAnomaly, len(r.anomalies))
	copy(out, r.anomalies)
	return out
}

// Ping always succeeds for the in-memory store.
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() error { return nil }
