package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quarkgo/quark/internal/config"
	"github.com/quarkgo/quark/internal/core/schedule"
	coresys "github.com/quarkgo/quark/internal/core/system"
	"github.com/quarkgo/quark/internal/data"
	"github.com/quarkgo/quark/internal/persist"
	"github.com/quarkgo/quark/internal/scripting"
	"github.com/quarkgo/quark/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string, tick time.Duration) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m               quark  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       parallel system scheduler           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mengine:\033[0m %s \033[90m(tick: %s)\033[0m\n\n", name, tick)
}

func printSection(title string) {
	lineLen := 46 - schedule.DisplayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - schedule.DisplayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func run() error {
	// 1. Load config
	cfgPath := "config/engine.toml"
	if p := os.Getenv("QUARK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	missing := errors.Is(err, fs.ErrNotExist)
	switch {
	case missing:
		cfg = config.Default()
	case err != nil:
		return fmt.Errorf("load config: %w", err)
	}
	started := time.Now()

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	if missing {
		log.Warn("config file not found, using defaults", zap.String("path", cfgPath))
	}

	printBanner(cfg.Engine.Name, cfg.Engine.TickRate)

	policy, err := coresys.ParseFailPolicy(cfg.Scheduler.FailPolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Optional report database
	opts := []coresys.Option{
		coresys.WithFailPolicy(policy),
		coresys.WithVerify(cfg.Scheduler.Verify),
		coresys.WithSink(coresys.NewLogSink(log.Named("report"))),
	}
	if cfg.Database.Enabled {
		printSection("database")
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := persist.RunMigrations(ctx, db.Pool)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema version %d", version))
		repo := persist.NewReportRepo(db, log.Named("reports"))
		repo.OnlyFailures = true
		opts = append(opts, coresys.WithSink(repo))
	}

	// 4. World, scripts and systems
	game, err := system.NewGame()
	if err != nil {
		return fmt.Errorf("create world: %w", err)
	}
	scripts := scripting.NewEngine(cfg.Scripting.Dir, log.Named("lua"))
	defer scripts.Close()

	sysOpts := system.DefaultOptions()
	if regen, err := scripts.Formula("regen.lua", "regen_amount"); err == nil {
		sysOpts.Regen = regen
	} else {
		log.Info("no scripted regen formula, using linear regen", zap.Error(err))
	}

	sc := coresys.NewContext(log.Named("scheduler"))
	defer func() {
		if err := sc.Close(); err != nil {
			log.Warn("close scheduler context", zap.Error(err))
		}
	}()
	if err := sc.RegisterResource(game.Resources()...); err != nil {
		return err
	}
	runner := coresys.NewRunner(sc, cfg.Scheduler.Workers, log.Named("runner"), opts...)

	printSection("systems")
	manifest, err := data.LoadManifest(cfg.Manifest.Path)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	if err := system.Install(sc, runner, manifest, system.Host{
		Builtins: system.Builtins(game, sysOpts, log),
		Scripts:  scripts,
		Game:     game,
	}); err != nil {
		return fmt.Errorf("install manifest: %w", err)
	}
	if manifest.Start == "" {
		if err := runner.ChangeState(cfg.Engine.State); err != nil {
			return err
		}
	}
	printStat("workers", runner.Workers())
	printStat("resources", sc.Resources().Len())
	for _, name := range sc.Lists() {
		l, _ := sc.List(name)
		printStat("list "+name, l.Len())
	}
	printStat("states", len(manifest.States))

	// 5. Start engine loop
	ticker := time.NewTicker(cfg.Engine.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("engine loop started (tick: %s)", cfg.Engine.TickRate))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := runner.Tick(ctx, dt); err != nil {
				if ctx.Err() != nil {
					continue
				}
				return fmt.Errorf("tick %d: %w", runner.Ticks(), err)
			}
		case <-ctx.Done():
			log.Info("shutdown signal received",
				zap.Uint64("ticks", runner.Ticks()),
				zap.Duration("uptime", time.Since(started).Round(time.Second)))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
