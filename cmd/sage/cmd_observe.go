package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sageflow/internal/agent"
	"sageflow/internal/sink"
)

var (
	seedTasks []string
	chunkSize int
)

// observeCmd replays one observation transcript against a seeded task graph.
var observeCmd = &cobra.Command{
	Use:   "observe TRANSCRIPT",
	Short: "Run an observation session over a recorded generation",
	Long: `Replays TRANSCRIPT ("-" for stdin) through the observation agent,
echoing the analysis live, then applies the completed and failed task ids to
a task graph seeded with --task descriptions (ids 1, 2, ...).`,
	Args: cobra.ExactArgs(1),
	RunE: runObserve,
}

func runObserve(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	policy, err := policyFor(agent.ObservationPolicy())
	if err != nil {
		return err
	}
	engine, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()
	if len(seedTasks) > 0 {
		engine.AddTasksBatch(seedTasks)
	}

	src, err := transcriptSource(args[0], cmd.InOrStdin(), chunkSize)
	if err != nil {
		return err
	}
	session, err := agent.NewSession(policy, src, agent.WithEngine(engine))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	last, err := agent.Pump(ctx, session, sink.NewWriterSink(out))
	if err != nil {
		return err
	}
	printResult(out, last, engine)

	logger.Info("observation finished",
		zap.String("session", session.ID()),
		zap.Stringer("state", session.State()))
	if last.Kind == agent.KindError {
		return fmt.Errorf("observation session %s failed", session.ID())
	}
	return nil
}
