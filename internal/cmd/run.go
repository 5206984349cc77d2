package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/far/internal/config"
	"github.com/harrison/far/internal/fanout"
	"github.com/harrison/far/internal/filelock"
	"github.com/harrison/far/internal/journal"
	"github.com/harrison/far/internal/logger"
	"github.com/harrison/far/internal/models"
	"github.com/harrison/far/internal/pattern"
	"github.com/harrison/far/internal/replace"
	"github.com/harrison/far/internal/seq"
	"github.com/harrison/far/internal/walk"
)

// addRunFlags registers the flags of a replacement run.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("lines", "l", false, "Apply the pattern to each line separately")
	cmd.Flags().BoolP("fixed-strings", "F", false, "Treat the pattern as literal text")
	cmd.Flags().BoolP("ignore-case", "i", false, "Match case-insensitively")
	cmd.Flags().IntP("jobs", "j", 0, "Number of files rewritten concurrently (0 = number of CPUs)")
	cmd.Flags().String("max-size", "", "Skip files larger than this in whole-file mode (e.g. 4MiB)")
	cmd.Flags().Duration("match-timeout", 0, "Give up on a file when one substitution takes longer (e.g. 5s)")
	cmd.Flags().String("config", "", "Path to config file (default: .far.yaml)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Also write a run log to this directory")
	cmd.Flags().BoolP("verbose", "v", false, "Log every file, including replaced ones")
	cmd.Flags().Bool("journal", false, "Record the run and every file outcome in the journal")
	cmd.Flags().String("journal-db", "", "Path to the journal database")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().Bool("no-lock", false, "Do not lock the roots against concurrent far runs")
}

// loadConfig loads the config file named by --config, or .far.yaml in the
// working directory, and merges the flags given on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, statErr)
		}
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var f config.FlagOverrides
	flags := cmd.Flags()

	if flags.Changed("lines") {
		lines, _ := flags.GetBool("lines")
		mode := replace.ModeAll.String()
		if lines {
			mode = replace.ModeLines.String()
		}
		f.Mode = &mode
	}
	if flags.Changed("fixed-strings") {
		v, _ := flags.GetBool("fixed-strings")
		f.FixedStrings = &v
	}
	if flags.Changed("ignore-case") {
		v, _ := flags.GetBool("ignore-case")
		f.IgnoreCase = &v
	}
	if flags.Changed("jobs") {
		v, _ := flags.GetInt("jobs")
		f.MaxWorkers = &v
	}
	if flags.Changed("max-size") {
		raw, _ := flags.GetString("max-size")
		size, err := config.ParseSize(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size %q: %w", raw, err)
		}
		f.MaxFileSize = &size
	}
	if flags.Changed("match-timeout") {
		v, _ := flags.GetDuration("match-timeout")
		f.MatchTimeout = &v
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		f.LogLevel = &v
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		f.LogDir = &v
	}
	if flags.Changed("no-lock") {
		noLock, _ := flags.GetBool("no-lock")
		lock := !noLock
		f.Lock = &lock
	}
	if flags.Changed("journal") {
		v, _ := flags.GetBool("journal")
		f.JournalEnabled = &v
	}
	if flags.Changed("journal-db") {
		v, _ := flags.GetString("journal-db")
		f.JournalDBPath = &v
	}

	cfg.MergeWithFlags(f)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLoggers builds the console logger and, when a log directory is
// configured, the file logger. The returned close function is never nil.
func newLoggers(cmd *cobra.Command, cfg *config.Config) (logger.Logger, func(), error) {
	logLevel := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}

	consoleLog := logger.NewConsoleLogger(cmd.ErrOrStderr(), logLevel)
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		consoleLog.SetColor(false)
	}

	if cfg.LogDir == "" {
		return consoleLog, func() {}, nil
	}

	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	return logger.NewMultiLogger(consoleLog, fileLog), func() { fileLog.Close() }, nil
}

// runCommand implements a replacement run
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, closeLogs, err := newLoggers(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLogs()

	expr, replacement := args[0], args[1]
	roots := args[2:]
	if len(roots) == 0 {
		roots = []string{"."}
	}

	pat, err := pattern.Compile(expr, pattern.Options{
		Literal:      cfg.FixedStrings,
		IgnoreCase:   cfg.IgnoreCase,
		MatchTimeout: cfg.MatchTimeout,
	})
	if err != nil {
		return err
	}
	mode, err := replace.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	if cfg.Lock {
		lockDir, err := config.GetLockDir()
		if err != nil {
			return err
		}
		locks, err := filelock.LockRoots(lockDir, roots)
		if err != nil {
			return err
		}
		defer locks.Release()
		log.LogTrace(fmt.Sprintf("Locked %d root(s) in %s", locks.Len(), lockDir))
	}

	walkers, err := walk.NewAll(roots)
	if err != nil {
		return err
	}
	items := seq.Flatten[walk.Result, *walk.Walker](seq.FromSlice(walkers))
	defer items.Close()

	sub := pattern.Substitution{Pattern: pat, Replacement: replacement}
	replacer := replace.New(cfg.MaxFileSize)
	handler := func(path string) error {
		return replacer.Run(replace.Task{Path: path, Substituter: sub, Mode: mode})
	}

	run := models.Run{
		ID:          journal.NewRunID(),
		Pattern:     expr,
		Replacement: replacement,
		Mode:        mode.String(),
		Roots:       absRoots(walkers),
		Workers:     workerCount(cfg.MaxWorkers),
		StartedAt:   time.Now(),
	}

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = openJournal(cfg.Journal.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	// Journal writes must survive an interrupt, so they use their own context.
	journalCtx := context.Background()
	var journalReporter *journal.Reporter
	if store != nil {
		if err := store.BeginRun(journalCtx, run); err != nil {
			return err
		}
		journalReporter = store.Reporter(journalCtx, run.ID)
	}

	log.LogRunStart(run)
	log.LogDebug(fmt.Sprintf("Run %s: max file size %s", run.ID, config.FormatSize(cfg.MaxFileSize)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ex := fanout.New(handler, fanout.Tee(log, reporterOrNil(journalReporter)), executorOptions(run.Workers, len(walkers)))
	summary := ex.Run(ctx, items)

	log.LogSummary(summary)

	if store != nil {
		if err := journalReporter.Err(); err != nil {
			log.LogWarn(fmt.Sprintf("journal incomplete: %v", err))
		}
		if err := store.FinishRun(journalCtx, run.ID, summary); err != nil {
			log.LogWarn(fmt.Sprintf("journal: %v", err))
		} else {
			log.LogInfo(fmt.Sprintf("Run %s recorded in %s", run.ID, store.Path()))
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d file(s)", summary.Total())
	}
	if n := summary.Failures(); n > 0 {
		return fmt.Errorf("%d file(s) could not be processed", n)
	}
	return nil
}

// reporterOrNil keeps a nil *journal.Reporter from becoming a non-nil
// interface value.
func reporterOrNil(r *journal.Reporter) fanout.Reporter {
	if r == nil {
		return nil
	}
	return r
}

// executorOptions deduplicates files only when several roots are walked; a
// single root never yields the same file twice.
func executorOptions(workers, roots int) fanout.Options {
	return fanout.Options{Workers: workers, KeepDuplicates: roots <= 1}
}

func workerCount(configured int) int {
	if configured <= 0 {
		return runtime.NumCPU()
	}
	return configured
}

func absRoots(walkers []*walk.Walker) []string {
	roots := make([]string, len(walkers))
	for i, w := range walkers {
		roots[i] = w.Root()
	}
	return roots
}

func openJournal(configured string) (*journal.Store, error) {
	dbPath, err := config.GetJournalDBPath(configured)
	if err != nil {
		return nil, err
	}
	store, err := journal.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", dbPath, err)
	}
	return store, nil
}
