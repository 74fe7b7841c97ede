package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
	"github.com/GabrielChurchill/YudokuChallenge/internal/repository"
)

type countingNotifier struct {
	n atomic.Int64
}

func (c *countingNotifier) Notify() { c.n.Add(1) }

func newTestService(t *testing.T, opts Options) (*GameService, *repository.MemoryRepository, *countingNotifier) {
	t.Helper()
	store := repository.NewMemoryRepository()
	if err := store.SeedPuzzles(context.Background()); err != nil {
		t.Fatalf("SeedPuzzles: %v", err)
	}
	notifier := &countingNotifier{}
	return NewGameService(store, nil, nil, notifier, opts), store, notifier
}

func startRun(t *testing.T, svc *GameService, name string) *models.StartRunResponse {
	t.Helper()
	consent := true
	resp, err := svc.StartRun(context.Background(), models.StartRunRequest{
		DeviceID: "device-1",
		Name:     name,
		Consent:  &consent,
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	return resp
}

func submit(t *testing.T, svc *GameService, runID string, elapsedMs, mistakes, hints int) *models.SubmitRunResponse {
	t.Helper()
	resp, err := svc.SubmitRun(context.Background(), models.SubmitRunRequest{
		RunID:     runID,
		ElapsedMs: &elapsedMs,
		Mistakes:  mistakes,
		Hints:     hints,
	})
	if err != nil {
		t.Fatalf("SubmitRun: %v", err)
	}
	return resp
}

func TestStartRunValidation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	consent := true
	longName := "this name is far too long to fit thirty characters"

	cases := []struct {
		name string
		req  models.StartRunRequest
		want []string
	}{
		{"empty name", models.StartRunRequest{DeviceID: "d", Consent: &consent}, []string{"name"}},
		{"long name", models.StartRunRequest{DeviceID: "d", Name: longName, Consent: &consent}, []string{"name"}},
		{"missing deviceId", models.StartRunRequest{Name: "Ann", Consent: &consent}, []string{"deviceId"}},
		{"missing consent", models.StartRunRequest{DeviceID: "d", Name: "Ann"}, []string{"consent"}},
		{"everything missing", models.StartRunRequest{}, []string{"deviceId", "name", "consent"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.StartRun(context.Background(), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if len(verr.Fields) != len(tc.want) {
				t.Fatalf("fields = %v, want %v", verr.Fields, tc.want)
			}
			for i, f := range tc.want {
				if verr.Fields[i] != f {
					t.Errorf("fields = %v, want %v", verr.Fields, tc.want)
					break
				}
			}
		})
	}
}

func TestStartRunAssignsSeededPuzzle(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	resp := startRun(t, svc, "Ann")

	if resp.RunID == "" {
		t.Error("empty runId")
	}
	if _, err := store.GetPuzzle(context.Background(), resp.PuzzleID); err != nil {
		t.Errorf("assigned unknown puzzle %s: %v", resp.PuzzleID, err)
	}

	run, err := store.GetRun(context.Background(), resp.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != models.RunStatusInProgress {
		t.Errorf("status = %s, want in_progress", run.Status)
	}
	if run.FinishedUtc != nil || run.FinalMs != nil {
		t.Error("fresh run already has completion data")
	}
}

func TestSubmitRunUnknownRun(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	elapsed := 1000
	_, err := svc.SubmitRun(context.Background(), models.SubmitRunRequest{
		RunID:     "missing",
		ElapsedMs: &elapsed,
	})
	if !errors.Is(err, repository.ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestSubmitRunValidation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	resp := startRun(t, svc, "Ann")
	negative := -1

	_, err := svc.SubmitRun(context.Background(), models.SubmitRunRequest{
		RunID:     resp.RunID,
		ElapsedMs: &negative,
		Mistakes:  -2,
		Hints:     -3,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Fields) != 3 {
		t.Errorf("fields = %v, want elapsedMs, mistakes, hints", verr.Fields)
	}
}

func TestSubmitRunEndToEnd(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{})
	started := startRun(t, svc, "Ann")

	resp := submit(t, svc, started.RunID, 60000, 1, 0)
	if !resp.Success || resp.FinalMs != 60000 {
		t.Fatalf("submit = %+v, want success with finalMs 60000", resp)
	}

	run, err := store.GetRun(context.Background(), started.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.FinalMs == nil || *run.FinalMs != 60000 {
		t.Errorf("finalMs = %v, want 60000", run.FinalMs)
	}
	if run.FinishedUtc == nil {
		t.Error("finishedUtc not set")
	}

	entries, err := svc.GetLeaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Ann" || entries[0].BestFinalMs != 60000 {
		t.Errorf("leaderboard = %+v, want Ann at 60000", entries)
	}

	if notifier.n.Load() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.n.Load())
	}

	// The anti-tamper check must have fired: the run was submitted
	// immediately with a reported minute of play.
	if got := len(store.Anomalies()); got != 1 {
		t.Errorf("anomalies recorded = %d, want 1", got)
	}
}

func TestSubmitRunSmallDriftNotRecorded(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	started := startRun(t, svc, "Ann")

	submit(t, svc, started.RunID, 0, 0, 0)
	if got := len(store.Anomalies()); got != 0 {
		t.Errorf("anomalies recorded = %d, want 0", got)
	}
}

func TestSubmitRunPenalties(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	started := startRun(t, svc, "Ann")

	resp := submit(t, svc, started.RunID, 5000, 5, 2)
	if resp.FinalMs != 125000 {
		t.Errorf("finalMs = %d, want 125000", resp.FinalMs)
	}
}

func TestResubmissionDefaultReapplies(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	started := startRun(t, svc, "Ann")

	submit(t, svc, started.RunID, 90000, 0, 0)
	resp := submit(t, svc, started.RunID, 60000, 0, 0)
	if resp.FinalMs != 60000 {
		t.Fatalf("resubmit finalMs = %d, want 60000", resp.FinalMs)
	}

	entries, err := svc.GetLeaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if entries[0].BestFinalMs != 60000 {
		t.Errorf("best = %d, want 60000 after resubmit", entries[0].BestFinalMs)
	}
}

func TestResubmissionGuard(t *testing.T) {
	svc, _, _ := newTestService(t, Options{RejectResubmission: true})
	started := startRun(t, svc, "Ann")

	submit(t, svc, started.RunID, 90000, 0, 0)

	elapsed := 60000
	_, err := svc.SubmitRun(context.Background(), models.SubmitRunRequest{
		RunID:     started.RunID,
		ElapsedMs: &elapsed,
	})
	if !errors.Is(err, ErrRunAlreadyCompleted) {
		t.Errorf("err = %v, want ErrRunAlreadyCompleted", err)
	}
}

func TestValidateCell(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	// E01 solution starts 478219563...
	cases := []struct {
		name      string
		row, col  int
		value     int
		wantValid bool
	}{
		{"correct corner", 0, 0, 4, true},
		{"wrong corner", 0, 0, 5, false},
		{"correct second cell", 0, 1, 7, true},
		{"row out of range", 9, 0, 4, false},
		{"col negative", 0, -1, 4, false},
		{"value out of range", 0, 0, 10, false},
		{"value zero", 0, 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := svc.ValidateCell(ctx, models.ValidateCellRequest{
				PuzzleID: "E01", Row: tc.row, Col: tc.col, Value: tc.value,
			})
			if err != nil {
				t.Fatalf("ValidateCell: %v", err)
			}
			if resp.Valid != tc.wantValid {
				t.Errorf("valid = %v, want %v", resp.Valid, tc.wantValid)
			}
		})
	}

	_, err := svc.ValidateCell(ctx, models.ValidateCellRequest{PuzzleID: "nope", Row: 0, Col: 0, Value: 1})
	if !errors.Is(err, repository.ErrPuzzleNotFound) {
		t.Errorf("unknown puzzle err = %v, want ErrPuzzleNotFound", err)
	}
}

func TestResetClearsAndNotifies(t *testing.T) {
	svc, _, notifier := newTestService(t, Options{})
	started := startRun(t, svc, "Ann")
	submit(t, svc, started.RunID, 60000, 0, 0)

	before := notifier.n.Load()
	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if notifier.n.Load() != before+1 {
		t.Error("reset did not notify viewers")
	}

	entries, err := svc.GetLeaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("leaderboard after reset = %+v, want empty", entries)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	for _, p := range []struct {
		name    string
		elapsed int
	}{{"Ann", 60000}, {"Bea", 90000}} {
		started := startRun(t, svc, p.name)
		submit(t, svc, started.RunID, p.elapsed, 0, 0)
	}
	// A run that never finishes must not count.
	startRun(t, svc, "Carol")

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	want := models.Stats{CompletedRuns: 2, DistinctPlayers: 2, AvgFinalMs: 75000}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
}

func TestConcurrentSubmissionsKeepMinimum(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	const n = 20
	runIDs := make([]string, n)
	for i := 0; i < n; i++ {
		runIDs[i] = startRun(t, svc, "Ann").RunID
	}

	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			elapsed := 60000 + i*1000
			_, err := svc.SubmitRun(ctx, models.SubmitRunRequest{
				RunID:     runIDs[i],
				ElapsedMs: &elapsed,
			})
			done <- err
		}(i)
	}
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("concurrent submit: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for submissions")
		}
	}

	entries, err := svc.GetLeaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].BestFinalMs != 60000 {
		t.Fatalf("leaderboard = %+v, want single Ann entry at 60000", entries)
	}
}
