// Command citysim runs a scenario sweep of the urban dynamics model and
// stores the resulting trajectories.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caarlos0/env/v11"

	"github.com/talgya/citysim/internal/api"
	"github.com/talgya/citysim/internal/persistence"
	"github.com/talgya/citysim/internal/report"
	"github.com/talgya/citysim/internal/scenario"
	"github.com/talgya/citysim/internal/sweep"
)

type config struct {
	ScenarioPath string `env:"CITYSIM_SCENARIO" envDefault:"scenario.yaml"`
	DBPath       string `env:"CITYSIM_DB" envDefault:"data/citysim.db"`
	CSVPath      string `env:"CITYSIM_CSV" envDefault:"data/results.csv"`
	Workers      int    `env:"CITYSIM_WORKERS" envDefault:"0"`
	Serve        bool   `env:"CITYSIM_SERVE" envDefault:"false"`
	Port         int    `env:"CITYSIM_PORT" envDefault:"8080"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("parse env", "error", err)
		os.Exit(1)
	}

	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		slog.Error("load scenario", "error", err)
		os.Exit(1)
	}
	slog.Info("scenario loaded",
		"name", sc.Name,
		"years", sc.Years,
		"seed", sc.Seed,
		"grid", len(sc.EduRates())*len(sc.TaxRates()),
	)

	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	runner := &sweep.Runner{Workers: cfg.Workers}
	runs, err := runner.Execute(context.Background(), sc)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		os.Exit(1)
	}

	if err := db.SaveRuns(runs); err != nil {
		slog.Error("save runs", "error", err)
		os.Exit(1)
	}

	f, err := os.Create(cfg.CSVPath)
	if err != nil {
		slog.Error("create csv", "error", err)
		os.Exit(1)
	}
	if err := report.WriteCSV(f, sweep.Outcomes(runs)); err != nil {
		f.Close()
		slog.Error("write csv", "error", err)
		os.Exit(1)
	}
	f.Close()
	slog.Info("sweep complete", "runs", len(runs), "csv", cfg.CSVPath)

	if !cfg.Serve {
		return
	}

	server := &api.Server{DB: db, Port: cfg.Port}
	server.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}
