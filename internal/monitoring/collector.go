package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-intake/internal/model"
)

// scanLimit caps how many submissions a single collection reads.
const scanLimit = 10000

// Snapshot holds a point-in-time view of intake health.
type Snapshot struct {
	// Submissions created within the lookback window.
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Processing int     `json:"processing"`
	FailRate   float64 `json:"fail_rate"`

	DLQDepth int `json:"dlq_depth"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Finished is the number of submissions whose extraction has ended.
func (s *Snapshot) Finished() int {
	return s.Completed + s.Failed
}

// Source is the slice of the store the collector reads.
type Source interface {
	ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)
	CountDLQ(ctx context.Context) (int, error)
}

// Collector gathers intake health from the store.
type Collector struct {
	src Source
	now func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, now: func() time.Time { return time.Now().UTC() }}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	subs, err := c.src.ListSubmissions(ctx, model.SubmissionFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        scanLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list submissions")
	}

	snap.Total = len(subs)
	for _, s := range subs {
		switch s.Status {
		case model.StatusCompleted:
			snap.Completed++
		case model.StatusFailed:
			snap.Failed++
		case model.StatusProcessing:
			snap.Processing++
		}
	}
	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}

	depth, err := c.src.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = depth

	return snap, nil
}
