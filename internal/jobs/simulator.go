package jobs

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GabrielChurchill/YudokuChallenge/internal/models"
	"github.com/GabrielChurchill/YudokuChallenge/internal/service"
)

// defaultRoster names the bot players cycling through the leaderboard.
var defaultRoster = []string{
	"bot-ada", "bot-grace", "bot-edsger", "bot-alan",
	"bot-barbara", "bot-donald", "bot-tony", "bot-leslie",
}

// SimulationManager plays complete runs through the game service at a
// steady tick rate to generate demo leaderboard traffic. Goes through the
// same start/submit path as real players.
type SimulationManager struct {
	service *service.GameService
	roster  []string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	totalRuns  atomic.Int64
	errorCount atomic.Int64
	startTime  time.Time

	tickInterval time.Duration
}

// SimulatorConfig holds configuration for the simulator
type SimulatorConfig struct {
	TickInterval time.Duration // Default: 2s (one bot run every 2 seconds)
	Roster       []string      // Default: built-in bot names
}

// NewSimulationManager creates a new simulation manager
func NewSimulationManager(svc *service.GameService, config SimulatorConfig) *SimulationManager {
	if config.TickInterval == 0 {
		config.TickInterval = 2 * time.Second
	}
	if len(config.Roster) == 0 {
		config.Roster = defaultRoster
	}

	return &SimulationManager{
		service:      svc,
		roster:       config.Roster,
		stopCh:       make(chan struct{}),
		tickInterval: config.TickInterval,
	}
}

// Start begins the simulation loop
func (sm *SimulationManager) Start(ctx context.Context) error {
	if sm.running.Load() {
		return fmt.Errorf("simulation already running")
	}

	sm.startTime = time.Now()
	sm.running.Store(true)

	log.Printf("Simulator started: %d bots, one run per %v", len(sm.roster), sm.tickInterval)

	sm.wg.Add(1)
	go sm.simulationLoop(ctx)

	return nil
}

// Stop gracefully stops the simulation
func (sm *SimulationManager) Stop() {
	if !sm.running.Load() {
		return
	}

	sm.running.Store(false)
	close(sm.stopCh)
	sm.wg.Wait()

	elapsed := time.Since(sm.startTime)
	log.Printf("Simulator stopped: %d runs, %d errors in %v",
		sm.totalRuns.Load(), sm.errorCount.Load(), elapsed.Round(time.Second))
}

// IsRunning returns whether the simulation is currently running
func (sm *SimulationManager) IsRunning() bool {
	return sm.running.Load()
}

func (sm *SimulationManager) simulationLoop(ctx context.Context) {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.playRun(ctx)
		}
	}
}

// playRun starts and immediately submits one bot run. The reported elapsed
// time stays inside the drift tolerance so bot traffic does not flood the
// anomaly audit; score variance comes from random mistakes and hints.
func (sm *SimulationManager) playRun(ctx context.Context) {
	sm.totalRuns.Add(1)

	name := sm.roster[rand.Intn(len(sm.roster))]
	consent := true

	started, err := sm.service.StartRun(ctx, models.StartRunRequest{
		DeviceID: "simulator",
		Name:     name,
		Consent:  &consent,
	})
	if err != nil {
		sm.errorCount.Add(1)
		log.Printf("Simulator failed to start run for %s: %v", name, err)
		return
	}

	elapsedMs := rand.Intn(3000)
	_, err = sm.service.SubmitRun(ctx, models.SubmitRunRequest{
		RunID:     started.RunID,
		ElapsedMs: &elapsedMs,
		Mistakes:  rand.Intn(6),
		Hints:     rand.Intn(3),
	})
	if err != nil {
		sm.errorCount.Add(1)
		log.Printf("Simulator failed to submit run for %s: %v", name, err)
	}
}
