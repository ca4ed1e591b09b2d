// Package extract turns uploaded artifacts into structured drafts using a
// vision/LLM service. Each document kind is one Spec over a shared adapter.
package extract

import (
	"context"
	"encoding/json"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/pkg/anthropic"
)

// Request is the input to one extraction attempt.
type Request struct {
	Kind      model.Kind
	Artifact  []byte
	MediaType string
	Filename  string
	Hints     model.Hints
}

// Result is the outcome of an extraction attempt that reached the service.
// Success is false when nothing usable came back.
type Result struct {
	Success  bool
	Draft    json.RawMessage
	Findings []model.Finding
	Model    string
	Usage    anthropic.TokenUsage
}

// Adapter extracts a draft from an artifact. Quality problems are reported as
// findings on a successful Result; only infrastructure failures (service
// unreachable, timeout, unsupported or malformed artifact) return an error.
type Adapter interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}
