package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperr "github.com/yungbote/recollection-backend/internal/pkg/errors"
	"github.com/yungbote/recollection-backend/internal/platform/envutil"
	"github.com/yungbote/recollection-backend/internal/platform/httpx"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

// Client is the structured-output surface the course pipeline needs.
type Client interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type Config struct {
	APIKey        string        `yaml:"-"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Temperature   *float64      `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// ApplyEnv overlays OPENAI_* variables onto c.
func (c *Config) ApplyEnv(log *logger.Logger) {
	c.APIKey = envutil.String("OPENAI_API_KEY", c.APIKey, log)
	c.BaseURL = envutil.String("OPENAI_BASE_URL", c.BaseURL, log)
	c.Model = envutil.String("OPENAI_MODEL", c.Model, log)
	c.Timeout = envutil.Seconds("OPENAI_TIMEOUT_SECONDS", c.Timeout, log)
	c.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", c.MaxRetries, log)
	c.RatePerSecond = envutil.Float("OPENAI_RATE_PER_SECOND", c.RatePerSecond, log)
	c.Burst = envutil.Int("OPENAI_BURST", c.Burst, log)
	if t := envutil.Float("OPENAI_TEMPERATURE", -1, log); t >= 0 {
		c.Temperature = &t
	}
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = "https://api.openai.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 180 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	temp       *float64
	httpClient *http.Client
	maxRetries int
	backoff    httpx.Backoff
	limiter    *rate.Limiter
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	cfg = cfg.withDefaults()
	c := &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    httpx.DefaultBackoff(),
	}
	if cfg.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return c, nil
}

// WithModel returns a copy of base that sends model instead of the configured one.
func WithModel(base Client, model string) Client {
	model = strings.TrimSpace(model)
	c, ok := base.(*client)
	if !ok || model == "" || model == c.model {
		return base
	}
	cp := *c
	cp.model = model
	cp.log = c.log.With("model", model)
	return &cp
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := c.backoff.Delay(attempt, resp)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
	}

	return fmt.Errorf("unreachable retry loop")
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string    `json:"model"`
	Input []message `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) (text string, refusal string) {
	var out strings.Builder
	refusal = resp.Refusal
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			switch {
			case c.Type == "output_text" && c.Text != "":
				out.WriteString(c.Text)
			case c.Type == "refusal" && refusal == "":
				refusal = c.Refusal
			}
		}
	}
	return out.String(), refusal
}

// GenerateJSON runs a strict json_schema request. Failures are classified:
// expired deadlines as timeouts, transport and HTTP failures as provider errors,
// refusals and unparseable output as schema violations.
func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	op := "openai " + schemaName
	if schemaName == "" {
		return nil, apperr.Validation("openai", "schemaName required")
	}
	if schema == nil {
		return nil, apperr.Validation(op, "schema required")
	}

	req := responsesRequest{
		Model:       c.model,
		Input:       []message{{Role: "system", Content: system}, {Role: "user", Content: user}},
		Temperature: c.temp,
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/responses", &req, &resp); err != nil {
		return nil, classify(op, err)
	}

	text, refusal := extractOutputText(resp)
	if refusal != "" {
		return nil, apperr.SchemaViolation(op, fmt.Errorf("model refused: %s", refusal))
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.SchemaViolation(op, errors.New("no output_text found in response"))
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, apperr.SchemaViolation(op, fmt.Errorf("parse model JSON: %w", err))
	}
	return obj, nil
}

func classify(op string, err error) error {
	if httpx.IsTimeout(err) {
		return apperr.Timeout(op, err)
	}
	return apperr.Provider(op, err)
}
