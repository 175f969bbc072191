package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcp2everything/PID-agent/internal/errors"
)

const systemPrompt = `You are an expert in PID control systems. Based on the provided system
state and performance metrics, suggest optimized PID parameters.

You must answer with a single complete JSON object and nothing else:
{
    "kp": 1.0,
    "ki": 0.1,
    "kd": 0.05,
    "explanation": "reason for each adjustment"
}

Constraints:
1. kp must be within [0.1, 100.0]
2. ki must be within [0.0, 10.0]
3. kd must be within [0.0, 10.0]
4. explanation must be a string
5. Use double quotes, no comments, no text outside the JSON object`

// LLMConfig configures the HTTP advisor client. URL is the full
// chat-completions endpoint of an OpenAI-compatible server.
type LLMConfig struct {
	URL     string
	Model   string
	APIKey  string
	Timeout time.Duration
}

func (c LLMConfig) Validate() error {
	errFactory := errors.New()
	if c.URL == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "advisor URL is required")
	}
	if c.Model == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "advisor model is required")
	}

	return nil
}

type llmAdvisor struct {
	cfg    LLMConfig
	client *http.Client
}

// NewLLM creates an advisor backed by an OpenAI-compatible chat
// completions endpoint.
func NewLLM(cfg LLMConfig) (Advisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &llmAdvisor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *llmAdvisor) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	errFactory := errors.New()

	payload, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return Suggestion{}, errFactory.Wrap(ErrRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return Suggestion{}, errFactory.Wrap(ErrRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Suggestion{}, errFactory.Wrap(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Suggestion{}, errFactory.WithData(ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Suggestion{}, errFactory.Wrap(ErrRequestFailed, err)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return Suggestion{}, errFactory.Wrap(ErrMalformedAnswer, err)
	}
	if len(chat.Choices) == 0 {
		return Suggestion{}, errFactory.New(ErrEmptyResponse)
	}

	return parseSuggestion(chat.Choices[0].Message.Content)
}

// parseSuggestion extracts the JSON object from the model's answer,
// tolerating surrounding prose or a markdown code fence.
func parseSuggestion(content string) (Suggestion, error) {
	errFactory := errors.New()

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Suggestion{}, errFactory.WithData(ErrMalformedAnswer, content)
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &suggestion); err != nil {
		return Suggestion{}, errFactory.Wrap(ErrMalformedAnswer, err)
	}

	return suggestion, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current state of channel %d:\n", req.Channel)
	fmt.Fprintf(&b, "- kp: %.3f\n", req.Gains.Kp)
	fmt.Fprintf(&b, "- ki: %.3f\n", req.Gains.Ki)
	fmt.Fprintf(&b, "- kd: %.3f\n", req.Gains.Kd)
	fmt.Fprintf(&b, "- target temperature: %.1f\n", req.TargetTemp)
	fmt.Fprintf(&b, "- current temperature: %.1f\n", req.CurrentTemp)

	b.WriteString("\nPerformance metrics:\n")
	fmt.Fprintf(&b, "- rise time: %s s\n", formatMetric(req.Metrics.RiseTime))
	fmt.Fprintf(&b, "- overshoot: %s %%\n", formatMetric(req.Metrics.OvershootPct))
	fmt.Fprintf(&b, "- settling time: %s s\n", formatMetric(req.Metrics.SettlingTime))
	fmt.Fprintf(&b, "- steady-state error: %s\n", formatMetric(req.Metrics.SteadyStateError))
	fmt.Fprintf(&b, "- temperature std dev: %s\n", formatMetric(req.Metrics.TemperatureStd))

	b.WriteString("\nPlease optimize the PID parameters based on the above.")

	return b.String()
}

func formatMetric(value *float64) string {
	if value == nil {
		return "N/A"
	}

	return fmt.Sprintf("%.3f", *value)
}
