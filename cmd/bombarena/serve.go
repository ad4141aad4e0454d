package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gonet "github.com/bombarena/server/internal/net"
	"github.com/bombarena/server/internal/persist"
	"github.com/bombarena/server/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation server",
	Long: `Load the data tables, resume or create a match, accept clients and
step the simulation at the configured tick rate until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()
	cfg.Server.StartTime = time.Now().Unix()

	printBanner(cfg.Server.Name)

	printSection("Data")
	gd, err := loadGameData(cfg.Data, cfg.Simulation, log, true)
	if err != nil {
		return err
	}
	defer gd.scripts.Close()
	fmt.Println()

	printSection("Database")
	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := persist.Open(openCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()
	printOK(fmt.Sprintf("%s store ready", cfg.Database.Driver))
	fmt.Println()

	loop, err := server.NewLoop(openCtx, server.Options{
		Simulation:         cfg.Simulation,
		MaxCommandsPerTick: cfg.Network.MaxCommandsPerTick,
		Table:              gd.table,
		Scenario:           gd.scenario,
		Rules:              gd.rules,
		Scripts:            gd.scripts,
		Store:              store,
		Log:                log,
	})
	if err != nil {
		return err
	}

	pps := 0
	if cfg.RateLimit.Enabled {
		pps = cfg.RateLimit.PacketsPerSecond
	}
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InSize:       cfg.Network.InQueueSize,
		OutSize:      cfg.Network.OutQueueSize,
		PktPerSec:    pps,
		WriteTimeout: cfg.Network.WriteTimeout,
		ReadTimeout:  cfg.Network.ReadTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()
	loop.Serve(netServer)

	printSection("Ready")
	printReady(fmt.Sprintf("Listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("Match %s at step %d (tick: %s)", loop.Match().ID, loop.Cosmos().Step(), cfg.Simulation.TickRate))
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = loop.Run(ctx)
	netServer.Shutdown()
	log.Info("server stopped", zap.Uint32("step", loop.Cosmos().Step()))
	return err
}
