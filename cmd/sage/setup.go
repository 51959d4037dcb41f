package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"sageflow/internal/agent"
	"sageflow/internal/perception"
	"sageflow/internal/store"
	"sageflow/internal/tasks"
)

// policyFor applies the config overrides for base.Agent, if any.
func policyFor(base agent.Policy) (agent.Policy, error) {
	ac, ok := cfg.Agents[base.Agent]
	if !ok {
		return base, nil
	}
	p := base
	if len(ac.Displayable) > 0 {
		p = p.WithDisplayable(ac.Displayable...)
	}
	if ac.Separator != nil {
		p = p.WithSeparator(*ac.Separator)
	}
	text, err := ac.PromptText()
	if err != nil {
		return p, fmt.Errorf("agent %s: %w", base.Agent, err)
	}
	if text != "" {
		if p, err = p.WithPrompt(text); err != nil {
			return p, err
		}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	logger.Debug("policy configured", zap.String("agent", p.Agent), zap.Strings("displayable", p.DisplayableTags()))
	return p, nil
}

// openEngine builds the job's task engine, journaled when configured. The
// returned func closes the journal.
func openEngine() (*tasks.Engine, func(), error) {
	opts := []tasks.Option{
		tasks.WithDefaultExecutor(cfg.Tasks.DefaultExecutor),
		tasks.WithIDStyle(tasks.IDStyle(cfg.Tasks.IDStyle)),
	}
	closeFn := func() {}
	if cfg.Tasks.JournalPath != "" {
		j, err := store.OpenJournal(cfg.Tasks.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open journal: %w", err)
		}
		opts = append(opts, tasks.WithJournal(j))
		closeFn = func() {
			if err := j.Close(); err != nil {
				logger.Warn("failed to close journal", zap.Error(err))
			}
		}
	}
	engine := tasks.NewEngine(opts...)
	logger.Info("job started", zap.String("job", engine.JobID()), zap.String("journal", cfg.Tasks.JournalPath))
	return engine, closeFn, nil
}

// transcriptSource replays a recorded generation from path ("-" reads stdin)
// in fragments of size runes.
func transcriptSource(path string, in io.Reader, size int) (*perception.StaticSource, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	if size <= 0 {
		size = cfg.Session.ChunkSize
	}
	return perception.NewStaticSource(perception.ChunkText(string(data), size)...), nil
}

// printResult writes the terminal event of a session and the current task
// status projection.
func printResult(w io.Writer, last agent.Event, engine *tasks.Engine) {
	switch last.Kind {
	case agent.KindResult:
		fmt.Fprintln(w, last.Content)
		if last.Report != nil {
			for _, warn := range last.Report.Warnings {
				fmt.Fprintf(w, "warning: %s\n", warn)
			}
		}
	case agent.KindError:
		fmt.Fprintf(w, "error (%s): %v\n", last.ErrorKind, last.Err)
	}
	if engine != nil {
		fmt.Fprintf(w, "\nJob %s\n%s\n", engine.JobID(), engine.StatusText())
	}
}
