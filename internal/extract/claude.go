package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sports-intake/internal/config"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/resilience"
	"github.com/sells-group/sports-intake/pkg/anthropic"
)

// ClaudeAdapter extracts drafts with the Anthropic Messages API.
type ClaudeAdapter struct {
	client        anthropic.Client
	model         string
	maxTokens     int64
	timeout       time.Duration
	maxBytes      int
	maxSheetRows  int
	minConfidence float64
	retry         resilience.RetryConfig
	limiter       *rate.Limiter
	breaker       *resilience.Breaker
}

// NewClaudeAdapter configures an adapter from application settings.
func NewClaudeAdapter(client anthropic.Client, ac config.AnthropicConfig, ec config.ExtractConfig) *ClaudeAdapter {
	retry := resilience.DefaultRetryConfig()
	if ec.RetryAttempts > 0 {
		retry.MaxAttempts = ec.RetryAttempts
	}
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract")

	rpm := ac.RequestsPerMinute
	if rpm <= 0 {
		rpm = 50
	}
	timeout := time.Duration(ec.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := ac.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	breaker := resilience.NewBreaker(5, 30*time.Second)
	breaker.OnStateChange = func(from, to resilience.BreakerState) {
		zap.L().Warn("anthropic circuit breaker",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &ClaudeAdapter{
		client:        client,
		model:         ac.Model,
		maxTokens:     maxTokens,
		timeout:       timeout,
		maxBytes:      ec.MaxArtifactMB << 20,
		maxSheetRows:  ec.MaxSheetRows,
		minConfidence: ec.MinConfidence,
		retry:         retry,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		breaker:       breaker,
	}
}

func (a *ClaudeAdapter) Extract(ctx context.Context, req Request) (*Result, error) {
	spec, err := SpecFor(req.Kind)
	if err != nil {
		return nil, err
	}
	if len(req.Artifact) == 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "extract: empty artifact")
	}
	if a.maxBytes > 0 && len(req.Artifact) > a.maxBytes {
		return nil, eris.Wrapf(model.ErrInvalidInput, "extract: artifact is %d bytes, limit %d", len(req.Artifact), a.maxBytes)
	}

	msg, err := a.buildMessage(spec, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
		return resilience.Call(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     a.model,
				MaxTokens: a.maxTokens,
				System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
				Messages:  []anthropic.Message{msg},
			})
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s", req.Kind)
	}
	resp.Usage.LogCost(a.model, string(req.Kind))

	res := &Result{Model: resp.Model, Usage: resp.Usage}
	draft, ok := parseDraft(resp.Text())
	if !ok {
		zap.L().Warn("extract: unusable model output",
			zap.String("kind", string(req.Kind)),
			zap.String("stop_reason", resp.StopReason),
			zap.Duration("elapsed", time.Since(start)),
		)
		return res, nil
	}

	res.Success = true
	res.Draft = draft
	res.Findings = a.qualityFindings(req.Kind, draft)
	return res, nil
}

// buildMessage attaches binary artifacts or inlines text ones.
func (a *ClaudeAdapter) buildMessage(spec Spec, req Request) (anthropic.Message, error) {
	att := anthropic.Attachment{MediaType: req.MediaType, Data: req.Artifact}
	switch {
	case att.IsImage(), att.IsPDF():
		return anthropic.Message{
			Role:        "user",
			Content:     spec.Prompt(req.Hints, ""),
			Attachments: []anthropic.Attachment{att},
		}, nil
	case isSheet(req.MediaType, req.Filename):
		body, err := renderSheet(req.Artifact, req.MediaType, req.Filename, a.maxSheetRows)
		if err != nil {
			return anthropic.Message{}, err
		}
		return anthropic.Message{Role: "user", Content: spec.Prompt(req.Hints, body)}, nil
	case req.MediaType == mediaText:
		return anthropic.Message{Role: "user", Content: spec.Prompt(req.Hints, string(req.Artifact))}, nil
	default:
		return anthropic.Message{}, eris.Wrapf(model.ErrInvalidInput, "extract: unsupported media type %q", req.MediaType)
	}
}

// qualityFindings flags drafts the model itself was unsure about.
func (a *ClaudeAdapter) qualityFindings(kind model.Kind, draft json.RawMessage) []model.Finding {
	if kind != model.KindScoreSheet || a.minConfidence <= 0 {
		return nil
	}
	var probe struct {
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(draft, &probe); err != nil || probe.Confidence == nil {
		return nil
	}
	if *probe.Confidence < a.minConfidence {
		return []model.Finding{model.NewFinding(model.FindingLowConfidence, "confidence",
			fmt.Sprintf("model confidence %.2f is below %.2f; check the score against the artifact", *probe.Confidence, a.minConfidence))}
	}
	return nil
}

// parseDraft extracts a compact JSON object from model output.
func parseDraft(text string) (json.RawMessage, bool) {
	cleaned := cleanJSON(text)
	if cleaned == "" || !strings.HasPrefix(cleaned, "{") {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(cleaned)); err != nil {
		return nil, false
	}
	if buf.String() == "{}" {
		return nil, false
	}
	return json.RawMessage(buf.Bytes()), true
}

// cleanJSON strips markdown fences and surrounding prose from model output.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
