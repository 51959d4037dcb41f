package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sageflow/internal/config"
	"sageflow/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "sageflow - streaming analysis agents over a shared task graph",
	Long: `sageflow runs analysis agents over streamed generator output.

Each session classifies the stream as it arrives, echoes the displayable
parts live, then extracts a typed record that drives status transitions on
the job's task graph.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err = logging.Initialize(logging.Options{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			Categories: cfg.Logging.Categories,
		})
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("model", cfg.LLM.Model))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sage.yaml", "Configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	observeCmd.Flags().StringSliceVar(&seedTasks, "task", nil, "Seed the task graph with a pending task (repeatable)")
	observeCmd.Flags().IntVar(&chunkSize, "chunk", 0, "Runes per replayed fragment (default from config)")

	jobCmd.Flags().StringSliceVar(&observeFiles, "observe", nil, "Observation transcript to run after planning (repeatable)")
	jobCmd.Flags().IntVar(&parallel, "parallel", -1, "Concurrent observation sessions (default from config, 0 = unlimited)")
	jobCmd.Flags().IntVar(&chunkSize, "chunk", 0, "Runes per replayed fragment (default from config)")

	liveCmd.Flags().StringVar(&liveAgent, "agent", "plan", "Agent to run: plan, observe or planning")
	liveCmd.Flags().StringVar(&liveTask, "task", "", "Task description for the prompt (required)")
	liveCmd.Flags().StringVar(&liveResults, "results", "", "File with execution results to include in the prompt")
	liveCmd.Flags().StringSliceVar(&seedTasks, "seed", nil, "Seed the task graph with a pending task (repeatable)")
	_ = liveCmd.MarkFlagRequired("task")

	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext applies the global timeout to the command's context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
