package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/marstools"
	"github.com/jward/marstools/internal/config"
	"github.com/jward/marstools/internal/logging"
	"github.com/jward/marstools/internal/watch"
	"github.com/jward/marstools/scripts"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
)

var (
	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "marstools",
	Short:         "Query and edit robot-model scene hierarchies",
	Long:          "marstools imports scene snapshots into a SQLite database and answers hierarchy queries over them: model roots, model members, type and name lookups, selection and property renames.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Logging, flagVerbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: database.path from config)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", ".marstools/config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scriptsCmd)
}

// resolveDBPath returns the database path from the --db flag or the config.
func resolveDBPath() string {
	if flagDB != "" {
		return flagDB
	}
	return cfg.Database.Path
}

// openEngine opens the scene database with options taken from the config.
func openEngine() (*marstools.Engine, error) {
	opts := []marstools.Option{
		marstools.WithLogger(logger),
		marstools.WithBodyType(cfg.Query.BodyType),
	}
	// Script source: scripts.dir overrides the embedded FS.
	if cfg.Scripts.Dir != "" {
		opts = append(opts, marstools.WithScriptsDir(cfg.Scripts.Dir))
	} else {
		opts = append(opts, marstools.WithScriptsFS(scripts.FS))
	}

	e, err := marstools.New(resolveDBPath(), opts...)
	if err != nil {
		return nil, fmt.Errorf("opening scene database: %w", err)
	}
	return e, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// --- import / export / watch ---

var flagForce bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored scene with a YAML snapshot",
	Long:  "Reads a scene snapshot and replaces the stored scene with it. Re-importing an unchanged file from the same path is a no-op unless --force is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagForce, "force", false, "import even if the file is unchanged")
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError(cmd, "import", err)
	}
	defer e.Close()

	res, err := e.ImportFile(cmd.Context(), args[0], flagForce)
	if err != nil {
		return outputError(cmd, "import", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "import",
		Results: CLIImport{Path: res.Path, Objects: res.Objects, Unchanged: res.Unchanged},
	})
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the stored scene as a YAML snapshot",
	Long:  "Writes the stored scene to file, or to stdout as YAML when no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return outputError(cmd, "export", err)
	}
	defer e.Close()

	if len(args) == 0 {
		f, err := e.Store().Export(cmd.Context())
		if err != nil {
			return outputError(cmd, "export", err)
		}
		return f.Encode(cmd.OutOrStdout())
	}

	n, err := e.ExportFile(cmd.Context(), args[0])
	if err != nil {
		return outputError(cmd, "export", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "export",
		Results: CLIExport{Path: args[0], Objects: n},
	})
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-import a scene snapshot whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext()
	defer cancel()

	reimport := func(ctx context.Context, path string) error {
		res, err := e.ImportFile(ctx, path, false)
		if err != nil {
			return err
		}
		if !res.Unchanged {
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d objects from %s\n", res.Objects, res.Path)
		}
		return nil
	}
	if err := reimport(ctx, args[0]); err != nil {
		return err
	}

	w, err := watch.New(args[0], reimport, watch.WithLogger(logger.Named("watch")))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", w.Path())

	<-w.Done()
	stats := w.Stats()
	logger.Info("watch finished",
		zap.Int("reloads", stats.Reloads),
		zap.Int("errors", stats.Errors))
	return nil
}
