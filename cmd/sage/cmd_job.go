package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sageflow/internal/agent"
	"sageflow/internal/sink"
)

var (
	observeFiles []string
	parallel     int
)

// jobCmd runs a whole job from transcripts: plan first, then observations.
var jobCmd = &cobra.Command{
	Use:   "job PLAN_TRANSCRIPT",
	Short: "Decompose a plan transcript into tasks, then run observations",
	Long: `Replays PLAN_TRANSCRIPT through the decomposition agent to populate the
task graph, then runs every --observe transcript as an independent
observation session against that graph, --parallel at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	out := cmd.OutOrStdout()

	planPolicy, err := policyFor(agent.PlanPolicy())
	if err != nil {
		return err
	}
	obsPolicy, err := policyFor(agent.ObservationPolicy())
	if err != nil {
		return err
	}
	engine, closeEngine, err := openEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	src, err := transcriptSource(args[0], cmd.InOrStdin(), chunkSize)
	if err != nil {
		return err
	}
	plan, err := agent.NewSession(planPolicy, src, agent.WithEngine(engine))
	if err != nil {
		return err
	}
	last, err := agent.Pump(ctx, plan, sink.NewWriterSink(out))
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if last.Kind == agent.KindError {
		printResult(out, last, engine)
		return fmt.Errorf("plan session %s failed", plan.ID())
	}

	sessions := make([]*agent.Session, 0, len(observeFiles))
	for _, path := range observeFiles {
		src, err := transcriptSource(path, cmd.InOrStdin(), chunkSize)
		if err != nil {
			return err
		}
		s, err := agent.NewSession(obsPolicy, src, agent.WithEngine(engine))
		if err != nil {
			return err
		}
		sessions = append(sessions, s)
	}

	limit := parallel
	if limit < 0 {
		limit = cfg.Session.Parallel
	}
	log := sink.NewMessageLog()
	results, err := agent.RunAll(ctx, sessions, log, limit)
	if err != nil {
		return err
	}

	failed := 0
	for i, ev := range results {
		msg, _ := log.Get(ev.CorrelationID)
		fmt.Fprintf(out, "\n== %s ==%s", observeFiles[i], msg.Display)
		switch ev.Kind {
		case agent.KindResult:
			for _, w := range ev.Report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
		case agent.KindError:
			failed++
			fmt.Fprintf(out, "error (%s): %v\n", ev.ErrorKind, ev.Err)
		}
	}
	fmt.Fprintf(out, "\nJob %s\n%s\n", engine.JobID(), engine.StatusText())

	stats := log.Stats()
	logger.Info("job finished",
		zap.String("job", engine.JobID()),
		zap.Int("sessions", len(sessions)+1),
		zap.Int("failed", failed),
		zap.Int("chunks", stats.Chunks))
	if failed > 0 {
		return fmt.Errorf("%d of %d observation sessions failed", failed, len(sessions))
	}
	return nil
}
