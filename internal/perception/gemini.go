package perception

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"sageflow/internal/logging"
)

// GeminiConfig holds connection settings for the Gemini streaming source.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.5-flash",
		Temperature: 1.0,
		Timeout:     5 * time.Minute,
	}
}

// GeminiClient opens streaming generations against the Gemini API.
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *zap.Logger
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultGeminiConfig("").Model
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg, logger: logging.Get(logging.CategoryPerception)}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.cfg.Model }

// Stream starts a generation and returns it as a TokenSource. Nothing is sent
// until the first Next call. The returned source must be closed.
func (c *GeminiClient) Stream(ctx context.Context, systemPrompt, userPrompt string) *GeminiSource {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	}

	c.logger.Debug("stream opened", zap.String("model", c.cfg.Model), zap.Int("prompt_len", len(userPrompt)))
	seq := c.client.Models.GenerateContentStream(ctx, c.cfg.Model, genai.Text(userPrompt), genCfg)
	return newGeminiSource(c.cfg.Model, seq, cancel, c.logger)
}

// GeminiSource pulls text deltas from a genai response stream.
type GeminiSource struct {
	model  string
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
	logger *zap.Logger
	chunks int
	start  time.Time
	done   bool
}

func newGeminiSource(model string, seq iter.Seq2[*genai.GenerateContentResponse, error], cancel context.CancelFunc, logger *zap.Logger) *GeminiSource {
	next, stop := iter.Pull2(seq)
	return &GeminiSource{model: model, next: next, stop: stop, cancel: cancel, logger: logger, start: time.Now()}
}

// Next implements TokenSource. Responses without text (usage-only chunks)
// are skipped. Cancelling ctx while Next is blocked aborts the whole
// generation, not just this call.
func (s *GeminiSource) Next(ctx context.Context) (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		stopWatch := context.AfterFunc(ctx, s.cancel)
		resp, err, ok := s.next()
		stopWatch()
		if !ok {
			s.done = true
			s.logger.Debug("stream finished", zap.String("model", s.model),
				zap.Int("chunks", s.chunks), zap.Duration("elapsed", time.Since(s.start)))
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			s.logger.Warn("stream failed", zap.String("model", s.model), zap.Int("chunks", s.chunks), zap.Error(err))
			return "", &UpstreamError{Source: "gemini/" + s.model, Err: err}
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			s.chunks++
			return text, nil
		}
	}
}

// Close stops the underlying iterator and releases its context.
func (s *GeminiSource) Close() error {
	s.done = true
	s.stop()
	s.cancel()
	return nil
}
