package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
)

// Sentinel errors surfaced to the service layer. Anything else from a Store
// is treated as a storage failure.
var (
	ErrRunNotFound    = errors.New("run not found")
	ErrPuzzleNotFound = errors.New("puzzle not found")
)

// CompletedRun is the single atomic update applied when a run is submitted.
type CompletedRun struct {
	ElapsedMs   int
	Mistakes    int
	Hints       int
	FinalMs     int
	FinishedUtc time.Time
}

// Store is the durable state behind the game service: puzzles, runs,
// leaderboard entries and timing-anomaly audit rows.
//
// UpsertBest must be atomic at the storage layer: two near-simultaneous
// submissions for the same name must never leave the entry describing a
// worse time than the best one seen.
type Store interface {
	SeedPuzzles(ctx context.Context) error
	ListPuzzles(ctx context.Context) ([]models.PuzzleSummary, error)
	GetPuzzle(ctx context.Context, id string) (*models.Puzzle, error)

	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	CompleteRun(ctx context.Context, runID string, result CompletedRun) (*models.Run, error)

	UpsertBest(ctx context.Context, name, runID string, finalMs int, finishedUtc time.Time) error
	GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Clear(ctx context.Context) error
	GetStats(ctx context.Context) (*models.Stats, error)

	InsertAnomaly(ctx context.Context, anomaly *models.TimingAnomaly) error

	Ping(ctx context.Context) error
	Close() error
}

// seedSet is the fixed puzzle catalog. Givens must agree with the solution
// at every non-placeholder position; seeding refuses inconsistent data.
var seedSet = []models.Puzzle{
	{
		ID:             "E01",
		PuzzleString:   "4.8.19.6...3764...612..87..2.6...9759..64.82118.9.2..482.4.....7..53......98...16",
		SolutionString: "478219563593764182612358749246183975937645821185972634821496357764531298359827416",
	},
	{
		ID:             "E02",
		PuzzleString:   "14....7..59.7.8....87.69.......8164..79.3..2....6....3.24.95.76.31846.5.9653274..",
		SolutionString: "146253789593718264287469135352981647679534821418672593824195376731846952965327418",
	},
	{
		ID:             "E03",
		PuzzleString:   "9..12467..7.39.1.5.....72.9.5748..62.....1.8.4.....95.78.6.35...43..281.6..84.7.3",
		SolutionString: "935124678276398145814567239157489362369251487428736951782613594543972816691845723",
	},
}

// validatePuzzle enforces the catalog invariants before any insert.
func validatePuzzle(p models.Puzzle) error {
	if len(p.PuzzleString) != 81 {
		return fmt.Errorf("puzzle %s: puzzle string is %d chars, want 81", p.ID, len(p.PuzzleString))
	}
	if len(p.SolutionString) != 81 {
		return fmt.Errorf("puzzle %s: solution string is %d chars, want 81", p.ID, len(p.SolutionString))
	}
	for i := 0; i < 81; i++ {
		s := p.SolutionString[i]
		if s < '1' || s > '9' {
			return fmt.Errorf("puzzle %s: solution has non-digit %q at index %d", p.ID, s, i)
		}
		g := p.PuzzleString[i]
		if g == '.' {
			continue
		}
		if g != s {
			return fmt.Errorf("puzzle %s: given %q at index %d contradicts solution %q", p.ID, g, i, s)
		}
	}
	return nil
}
