package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/xplat/bridge"
	"github.com/wippyai/xplat/config"
	"github.com/wippyai/xplat/descriptor"
	"github.com/wippyai/xplat/detect"
	"github.com/wippyai/xplat/linker"
	"github.com/wippyai/xplat/report"
	"github.com/wippyai/xplat/watch"
)

// Exit codes.
const (
	exitOK      = 0
	exitBlocked = 1
	exitFailure = 2
)

type options struct {
	manifest    string
	format      string
	output      string
	descriptors []string
	history     int
	verbose     bool
	interactive bool
	watch       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.manifest, "manifest", "xplat.toml", "Path to the plugin manifest")
	flag.StringVar(&opts.format, "format", "", "Report format: text, markdown, json (default from manifest)")
	flag.StringVar(&opts.output, "o", "", "Write the report to a file instead of stdout")
	flag.IntVar(&opts.history, "history", 0, "List the last N recorded link runs and exit")
	flag.BoolVar(&opts.verbose, "v", false, "List excluded and unmapped types")
	flag.BoolVar(&opts.interactive, "i", false, "Browse conflicts interactively")
	flag.BoolVar(&opts.watch, "watch", false, "Relink when the manifest or a descriptor changes")
	flag.Parse()
	opts.descriptors = flag.Args()

	code, err := run(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

func run(opts options) (int, error) {
	cfg, err := loadConfig(opts.manifest)
	if err != nil {
		return exitFailure, err
	}
	cfg.Link.Descriptors = append(cfg.Link.Descriptors, opts.descriptors...)
	if opts.format != "" {
		cfg.Report.Format = opts.format
	}
	if opts.output != "" {
		cfg.Report.Output = opts.output
	}

	log, err := cfg.ZapConfig().Build()
	if err != nil {
		return exitFailure, fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()
	linker.SetLogger(log.Named("linker"))
	bridge.SetLogger(log.Named("bridge"))
	watch.SetLogger(log.Named("watch"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *report.Store
	if cfg.Report.Store != "" {
		store, err = report.Open(cfg.Report.Store)
		if err != nil {
			return exitFailure, err
		}
		defer store.Close()
	}

	if opts.history > 0 {
		if store == nil {
			return exitFailure, fmt.Errorf("history requires report.store in the manifest")
		}
		return exitOK, printHistory(ctx, os.Stdout, store, opts.history)
	}

	rep, err := linkOnce(ctx, cfg, log)
	if err != nil {
		return exitFailure, err
	}
	if store != nil {
		if err := record(ctx, os.Stderr, store, rep); err != nil {
			log.Warn("link run not recorded", zap.Error(err))
		}
	}

	if opts.interactive {
		if err := runInteractive(rep); err != nil {
			return exitFailure, err
		}
		return exitCode(rep), nil
	}
	if err := emit(cfg, rep, opts.verbose); err != nil {
		return exitFailure, err
	}

	if !opts.watch {
		return exitCode(rep), nil
	}
	return watchLoop(ctx, cfg, opts, store, rep, log)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if stderrors.Is(err, os.ErrNotExist) {
		return config.Parse("")
	}
	return cfg, err
}

// linkOnce runs a full pass. Configuration failures are folded into the
// report as Error conflicts. Descriptor files that cannot be read are an
// operational failure and are returned as an error.
func linkOnce(ctx context.Context, cfg *config.Config, log *zap.Logger) (report.Report, error) {
	fail := func(err error) report.Report {
		rep := report.FromConfigError(err)
		if len(rep.Conflicts) == 0 {
			rep.Conflicts = []detect.Conflict{{
				Severity:    detect.Error,
				Code:        detect.CodeInvalidConfig,
				Subject:     "manifest",
				Description: err.Error(),
			}}
			rep.Errors = 1
		}
		rep.Manifest = cfg.Path()
		return rep
	}

	l, err := cfg.Linker()
	if err != nil {
		return fail(err), nil
	}

	streams := make([]*descriptor.Stream, 0, len(cfg.Link.Descriptors))
	var loadErrs []error
	for _, path := range cfg.Link.Descriptors {
		s, err := descriptor.LoadFile(path)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("load descriptor %s: %w", path, err))
			continue
		}
		streams = append(streams, s)
	}
	if err := stderrors.Join(loadErrs...); err != nil {
		return report.Report{}, err
	}

	res, err := l.Link(ctx, streams...)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return report.Report{}, err
		}
		return fail(err), nil
	}
	rep := report.FromResult(res)
	rep.Manifest = cfg.Path()
	log.Info("link finished",
		zap.Int("classes", rep.Classes),
		zap.Int("errors", rep.Errors),
		zap.Int("warnings", rep.Warnings),
		zap.Duration("duration", res.Duration))
	return rep, nil
}

func emit(cfg *config.Config, rep report.Report, verbose bool) error {
	var w io.Writer = os.Stdout
	color := term.IsTerminal(int(os.Stdout.Fd()))
	if cfg.Report.Output != "" {
		f, err := os.Create(cfg.Report.Output)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
		color = false
	}
	return report.Write(w, cfg.Report.Format, rep, report.TextOptions{Color: color, Verbose: verbose})
}

// record saves the run and prints what changed since the previous one.
func record(ctx context.Context, w io.Writer, store *report.Store, rep report.Report) error {
	run, err := store.Save(ctx, rep)
	if err != nil {
		return err
	}
	runs, err := store.Runs(ctx, 2)
	if err != nil || len(runs) < 2 || runs[0].ID != run.ID {
		return err
	}
	d, err := store.Diff(ctx, runs[1].ID, run.ID)
	if err != nil {
		return err
	}
	if len(d.Added)+len(d.Resolved) > 0 {
		fmt.Fprintf(w, "since last run: %d new, %d resolved\n", len(d.Added), len(d.Resolved))
		for _, c := range d.Added {
			fmt.Fprintf(w, "  + %s\n", c)
		}
		for _, c := range d.Resolved {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	return nil
}

func printHistory(ctx context.Context, w io.Writer, store *report.Store, n int) error {
	runs, err := store.Runs(ctx, n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "ready"
		if !r.Generatable {
			status = "blocked"
		}
		fmt.Fprintf(w, "%s  %s  %-7s  %d classes, %d errors, %d warnings\n",
			r.Time.Format("2006-01-02 15:04:05"), r.ID, status, r.Classes, r.Errors, r.Warnings)
	}
	return nil
}

func watchLoop(ctx context.Context, cfg *config.Config, opts options, store *report.Store, last report.Report, log *zap.Logger) (int, error) {
	relink := make(chan struct{}, 1)
	// The report file may sit next to the descriptors; writing it must not
	// trigger another pass.
	output := cfg.Report.Output
	w, err := watch.New(cfg.Watch.Debounce, cfg.Watch.Patterns, func(paths []string) {
		if output != "" {
			paths = slices.DeleteFunc(paths, func(p string) bool { return p == filepath.Clean(output) })
		}
		if len(paths) == 0 {
			return
		}
		log.Info("relinking", zap.Strings("changed", paths))
		select {
		case relink <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return exitFailure, err
	}
	defer w.Close()

	paths := append([]string{}, cfg.Link.Descriptors...)
	if cfg.Path() != "" {
		paths = append(paths, cfg.Path())
	}
	if err := w.Watch(paths); err != nil {
		return exitFailure, err
	}
	fmt.Fprintln(os.Stderr, "watching for changes, press ctrl+c to stop")

	failed := false
	for {
		select {
		case <-ctx.Done():
			if failed {
				return exitFailure, nil
			}
			return exitCode(last), nil
		case <-relink:
		}

		if path := cfg.Path(); path != "" {
			next, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "manifest not reloaded: %v\n", err)
			} else {
				next.Link.Descriptors = append(next.Link.Descriptors, opts.descriptors...)
				if opts.format != "" {
					next.Report.Format = opts.format
				}
				if opts.output != "" {
					next.Report.Output = opts.output
				}
				cfg = next
			}
		}

		rep, err := linkOnce(ctx, cfg, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "relink failed: %v\n", err)
			failed = true
			continue
		}
		last, failed = rep, false
		if store != nil {
			if err := record(ctx, os.Stderr, store, last); err != nil {
				log.Warn("link run not recorded", zap.Error(err))
			}
		}
		if err := emit(cfg, last, opts.verbose); err != nil {
			return exitFailure, err
		}
	}
}

func exitCode(rep report.Report) int {
	if rep.Generatable {
		return exitOK
	}
	return exitBlocked
}
