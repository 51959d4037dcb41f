package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sageflow/internal/agent"
	"sageflow/internal/articulation"
	"sageflow/internal/perception"
	"sageflow/internal/sink"
)

var (
	liveAgent   string
	liveTask    string
	liveResults string
)

var agentAliases = map[string]string{
	"plan":        agent.PlanAgent,
	"observe":     agent.ObservationAgent,
	"observation": agent.ObservationAgent,
	"planning":    agent.PlanningAgent,
	"next":        agent.PlanningAgent,
}

// liveCmd streams a fresh generation from Gemini.
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run an agent against a live Gemini generation",
	Long: `Renders the agent's prompt for --task (with the current task status as
context), streams the generation from Gemini and runs it through the agent.
Requires GEMINI_API_KEY.`,
	Args: cobra.NoArgs,
	RunE: runLive,
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	name := liveAgent
	if canonical, ok := agentAliases[name]; ok {
		name = canonical
	}
	base, ok := agent.Policies()[name]
	if !ok {
		return fmt.Errorf("unknown agent %q (valid: plan, observe, planning)", liveAgent)
	}
	policy, err := policyFor(base)
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
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

	pc := articulation.PromptContext{TaskDescription: liveTask}
	if liveResults != "" {
		data, err := os.ReadFile(liveResults)
		if err != nil {
			return fmt.Errorf("failed to read results: %w", err)
		}
		pc.ExecutionResults = string(data)
	}
	prompt, err := policy.BuildPrompt(engine, pc)
	if err != nil {
		return err
	}

	gcfg := perception.DefaultGeminiConfig(cfg.LLM.APIKey)
	gcfg.Model = cfg.LLM.Model
	gcfg.Temperature = cfg.LLM.Temperature
	gcfg.Timeout = cfg.GetLLMTimeout()
	client, err := perception.NewGeminiClient(ctx, gcfg)
	if err != nil {
		return err
	}

	logger.Info("starting live session", zap.String("agent", policy.Agent), zap.String("model", client.Model()))
	session, err := agent.NewSession(policy, client.Stream(ctx, "", prompt), agent.WithEngine(engine))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	last, err := agent.Pump(ctx, session, sink.NewWriterSink(out))
	if err != nil {
		return err
	}
	printResult(out, last, engine)
	if last.Kind == agent.KindError {
		return fmt.Errorf("%s session %s failed", policy.Agent, session.ID())
	}
	return nil
}
