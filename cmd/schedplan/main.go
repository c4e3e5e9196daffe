// Command schedplan prints the schedule of every system list in a manifest
// without running any system. With -history it also prints the latest
// stored runs of each list from the report database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/config"
	"github.com/quarkgo/quark/internal/core/schedule"
	coresys "github.com/quarkgo/quark/internal/core/system"
	"github.com/quarkgo/quark/internal/data"
	"github.com/quarkgo/quark/internal/persist"
	"github.com/quarkgo/quark/internal/scripting"
	"github.com/quarkgo/quark/internal/system"
)

type options struct {
	config   string
	manifest string
	list     string
	verify   bool
	history  int
}

func main() {
	var opts options
	fset := flag.NewFlagSet("schedplan", flag.ExitOnError)
	fset.StringVar(&opts.config, "config", envOr("QUARK_CONFIG", "config/engine.toml"), "engine config file")
	fset.StringVar(&opts.manifest, "manifest", "", "systems manifest (default: from config)")
	fset.StringVar(&opts.list, "list", "", "print only this list")
	fset.BoolVar(&opts.verify, "verify", false, "prove every write conflict is ordered")
	fset.IntVar(&opts.history, "history", 0, "print the last N stored runs per list (needs the database)")
	_ = fset.Parse(os.Args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, w io.Writer, opts options) error {
	cfg, err := config.Load(opts.config)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return err
	}
	if opts.manifest == "" {
		opts.manifest = cfg.Manifest.Path
	}
	m, err := data.LoadManifest(opts.manifest)
	if err != nil {
		return err
	}

	var repo *persist.ReportRepo
	if opts.history > 0 {
		if !cfg.Database.Enabled {
			return fmt.Errorf("-history needs database.enabled in %s", opts.config)
		}
		db, err := persist.NewDB(ctx, cfg.Database, zap.NewNop())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		repo = persist.NewReportRepo(db, zap.NewNop())
	}

	game, err := system.NewGame()
	if err != nil {
		return err
	}
	scripts := scripting.NewEngine(cfg.Scripting.Dir, zap.NewNop())
	defer scripts.Close()

	sc := coresys.NewContext(nil)
	defer sc.Close()
	if err := sc.RegisterResource(game.Resources()...); err != nil {
		return err
	}
	r := coresys.NewRunner(sc, cfg.Scheduler.Workers, nil)
	if err := system.Install(sc, r, m, system.Host{
		Builtins: system.Builtins(game, system.DefaultOptions(), nil),
		Scripts:  scripts,
		Game:     game,
	}); err != nil {
		return err
	}

	lists := sc.Lists()
	if opts.list != "" {
		lists = []string{opts.list}
	}
	for i, name := range lists {
		plan, err := sc.Plan(name)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s]\n", name)
		if err := schedule.PrintSchedule(w, plan.Graph); err != nil {
			return err
		}
		if opts.verify {
			if err := plan.Graph.Verify(); err != nil {
				return fmt.Errorf("list %s: %w", name, err)
			}
			fmt.Fprintln(w, "verified: every write conflict is ordered")
		}
		if repo != nil {
			runs, err := repo.RecentRuns(ctx, name, opts.history)
			if err != nil {
				return fmt.Errorf("list %s: %w", name, err)
			}
			printRuns(w, runs)
		}
	}
	return nil
}

// printRuns writes one line per stored run, newest first.
func printRuns(w io.Writer, runs []persist.RunRow) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "history: no stored runs")
		return
	}
	fmt.Fprintf(w, "history: %d run(s)\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  #%d tick %d state %s: %d systems, %d waves, peak %d/%d, failed %d, cancelled %d, %s\n",
			r.ID, r.Tick, r.State, r.Systems, r.Waves, r.Peak, r.Workers, r.Failed, r.Cancelled, r.Elapsed)
	}
}
