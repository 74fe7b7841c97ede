package models

import (
	"time"
)

// Run statuses. Only in_progress -> completed is driven by the service;
// dnf is reserved for future abandonment handling.
const (
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusDNF        = "dnf"
)

// Puzzle is a seeded 9x9 sudoku with its precomputed solution.
// The solution string never leaves the server.
type Puzzle struct {
	ID             string `gorm:"primaryKey;size:10" json:"id"`
	PuzzleString   string `gorm:"not null" json:"puzzleString"`
	SolutionString string `gorm:"not null" json:"-"`
}

// TableName specifies the table name for GORM
func (Puzzle) TableName() string {
	return "puzzles"
}

// PuzzleSummary is the client-facing listing shape (no solution).
type PuzzleSummary struct {
	ID           string `json:"id"`
	PuzzleString string `json:"puzzleString"`
}

// Run represents one player's timed attempt at one puzzle.
type Run struct {
	RunID       string     `gorm:"primaryKey;size:36;column:run_id" json:"runId"`
	DeviceID    string     `gorm:"size:255;not null;column:device_id" json:"deviceId"`
	Name        string     `gorm:"size:30;not null" json:"name"`
	Consent     bool       `gorm:"not null" json:"consent"`
	PuzzleID    string     `gorm:"size:10;not null;column:puzzle_id" json:"puzzleId"`
	StartedUtc  time.Time  `gorm:"not null" json:"startedUtc"`
	FinishedUtc *time.Time `json:"finishedUtc"`
	ElapsedMs   *int       `json:"elapsedMs"`
	Mistakes    int        `gorm:"not null;default:0" json:"mistakes"`
	Hints       int        `gorm:"not null;default:0" json:"hints"`
	FinalMs     *int       `json:"finalMs"`
	Status      string     `gorm:"size:20;not null;default:in_progress" json:"status"`
}

// TableName specifies the table name for GORM
func (Run) TableName() string {
	return "runs"
}

// LeaderboardEntry is a player's single best completed run, keyed by name.
type LeaderboardEntry struct {
	Name            string    `gorm:"primaryKey;size:30" json:"name"`
	BestRunID       string    `gorm:"size:36;not null;column:best_run_id" json:"bestRunId"`
	BestFinalMs     int       `gorm:"not null" json:"bestFinalMs"`
	BestFinishedUtc time.Time `gorm:"not null" json:"bestFinishedUtc"`
}

// TableName specifies the table name for GORM
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}

// TimingAnomaly is an audit row recorded when the client-reported elapsed
// time drifts too far from the server-observed one. Never blocks a submit.
type TimingAnomaly struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	RunID           string    `gorm:"size:36;not null;column:run_id" json:"runId"`
	DeviceID        string    `gorm:"size:255;not null;column:device_id" json:"deviceId"`
	ServerElapsedMs int64     `json:"serverElapsedMs"`
	ClientElapsedMs int       `json:"clientElapsedMs"`
	DetectedUtc     time.Time `gorm:"not null" json:"detectedUtc"`
}

// TableName specifies the table name for GORM
func (TimingAnomaly) TableName() string {
	return "timing_anomalies"
}

// StartRunRequest is the payload for starting a run.
type StartRunRequest struct {
	DeviceID string `json:"deviceId" validate:"required"`
	Name     string `json:"name" validate:"required,max=30"`
	Consent  *bool  `json:"consent" validate:"required"`
}

// StartRunResponse is returned when a run is created. No solution data.
type StartRunResponse struct {
	RunID      string    `json:"runId"`
	PuzzleID   string    `json:"puzzleId"`
	StartedUtc time.Time `json:"startedUtc"`
}

// SubmitRunRequest is the payload for finalizing a run.
type SubmitRunRequest struct {
	RunID     string `json:"runId" validate:"required"`
	ElapsedMs *int   `json:"elapsedMs" validate:"required,min=0"`
	Mistakes  int    `json:"mistakes" validate:"min=0"`
	Hints     int    `json:"hints" validate:"min=0"`
}

// SubmitRunResponse carries the computed final time.
type SubmitRunResponse struct {
	Success bool `json:"success"`
	FinalMs int  `json:"finalMs"`
}

// ValidateCellRequest asks whether a single cell entry matches the solution.
type ValidateCellRequest struct {
	PuzzleID string `json:"puzzleId" validate:"required"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Value    int    `json:"value"`
}

// ValidateCellResponse is the per-cell verdict.
type ValidateCellResponse struct {
	Valid bool `json:"valid"`
}

// Stats aggregates over completed runs.
type Stats struct {
	CompletedRuns   int64 `json:"completedRuns"`
	DistinctPlayers int64 `json:"distinctPlayers"`
	AvgFinalMs      int64 `json:"avgFinalMs"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
