package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talgya/domacity/internal/api"
	"github.com/talgya/domacity/internal/config"
	"github.com/talgya/domacity/internal/design"
	"github.com/talgya/domacity/internal/engine"
	"github.com/talgya/domacity/internal/persistence"
	"github.com/talgya/domacity/internal/play"
	"github.com/talgya/domacity/internal/stats"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("steps") {
				cfg.Steps, _ = cmd.Flags().GetInt("steps")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("design") {
				cfg.DesignPath, _ = cmd.Flags().GetString("design")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSimulation(cfg)
		},
	}
	cmd.Flags().Int("steps", 0, "Months to simulate (overrides config)")
	cmd.Flags().Int64("seed", 0, "RNG seed (overrides config; 0 derives from clock)")
	cmd.Flags().String("design", "", "Path to city design YAML (overrides config)")
	return cmd
}

func runSimulation(cfg *config.Config) error {
	setupLogging(cfg.LogLevel)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	d, err := design.Load(cfg.DesignPath)
	if err != nil {
		return fmt.Errorf("load design: %w", err)
	}

	sim, err := engine.New(d, cfg, rng)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}

	var db *persistence.DB
	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
		db, err = persistence.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.DatabasePath)
	}

	slog.Info("run starting",
		"city", d.City.Name,
		"seed", seed,
		"steps", cfg.Steps,
		"burn_in", cfg.BurnIn,
	)

	var mu sync.Mutex
	manager := play.NewManager()
	server := &api.Server{Sim: sim, Play: manager, Mu: &mu, BurnIn: cfg.BurnIn}
	server.Start(cfg.ListenAddr)

	var runID uuid.UUID
	if db != nil {
		runID, err = db.BeginRun(d.City.Name, seed, cfg.Steps)
		if err != nil {
			return err
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// With players connected the loop waits for run commands instead of
	// free-running; poll the queue at this interval while paused.
	const commandPoll = 250 * time.Millisecond

	interrupted := false
	stepped := 0
	for stepped < cfg.Steps && !interrupted {
		select {
		case sig := <-sigs:
			slog.Info("signal received, stopping", "signal", sig)
			interrupted = true
			continue
		default:
		}

		mu.Lock()
		if sim.Month >= cfg.BurnIn {
			manager.Apply(sim)
			if manager.Active() && !manager.ConsumeStep() {
				mu.Unlock()
				time.Sleep(commandPoll)
				continue
			}
		}
		sim.Step()
		stepped++
		snap := stats.Collect(sim.Month-1, sim.City, sim.Tenants, sim.Fund)
		transfers := sim.LastTransfers
		mu.Unlock()

		if db != nil {
			if err := db.SaveStep(runID, snap, transfers); err != nil {
				slog.Error("save step failed", "month", snap.Month, "err", err)
			}
		}

		if snap.Month%12 == 0 {
			slog.Info("year boundary",
				"month", snap.Month,
				"housed", fmt.Sprintf("%.1f%%", snap.PercentHoused*100),
				"vacant", fmt.Sprintf("%.1f%%", snap.PercentVacant*100),
				"mean_value", humanize.CommafWithDigits(snap.MeanValue, 0),
				"fund_units", snap.FundUnits,
				"fund_balance", humanize.CommafWithDigits(snap.FundBalance, 0),
			)
		}
	}

	mu.Lock()
	final := stats.Collect(sim.Month, sim.City, sim.Tenants, sim.Fund)
	mu.Unlock()

	if db != nil {
		if err := db.SaveFinalUnits(runID, sim.City.Units); err != nil {
			slog.Error("save final units failed", "err", err)
		}
		if err := db.FinishRun(runID); err != nil {
			slog.Error("finish run failed", "err", err)
		}
	}

	slog.Info("run complete",
		"months", sim.Month,
		"housed", fmt.Sprintf("%.1f%%", final.PercentHoused*100),
		"owners", final.UniqueOwners,
		"fund_members", fmt.Sprintf("%.1f%%", final.FundMemberShare*100),
		"mean_rent_per_area", humanize.CommafWithDigits(final.MeanRentPerArea, 2),
	)
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
