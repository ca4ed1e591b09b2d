package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/queue"
	"github.com/sells-group/sports-intake/internal/resilience"
)

// formatSubmissionsList writes a tabular list of submissions to out.
func formatSubmissionsList(out io.Writer, subs []model.Submission) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tOWNER\tFINDINGS\tCREATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t--------\t-------\t-----")

	for _, s := range subs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(s.ID),
			s.Kind,
			s.Status,
			s.OwnerID,
			len(s.Findings),
			s.CreatedAt.Format("2006-01-02 15:04"),
			truncate(s.Error, 40),
		)
	}
	_ = w.Flush()
}

// submissionView flattens a submission for YAML output with its draft
// decoded instead of embedded as raw JSON.
type submissionView struct {
	model.Submission `yaml:",inline"`
	Draft            any `yaml:"payload,omitempty"`
}

// writeSubmission renders a submission as json or yaml.
func writeSubmission(out io.Writer, sub *model.Submission, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sub)
	case "yaml":
		view := submissionView{Submission: *sub}
		if sub.HasPayload() {
			if err := json.Unmarshal(sub.Payload, &view.Draft); err != nil {
				return eris.Wrap(err, "decode payload")
			}
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(view)
	default:
		return eris.Errorf("unknown format %q (json, yaml)", format)
	}
}

// formatAudit writes audit entries oldest first.
func formatAudit(out io.Writer, entries []model.AuditEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CREATED\tACTOR\tACTION\tCHANGES")
	_, _ = fmt.Fprintln(w, "-------\t-----\t------\t-------")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339),
			e.ActorID,
			e.Action,
			formatChanges(e.Changes),
		)
	}
	_ = w.Flush()
}

// formatChanges renders changes as sorted key=value pairs.
func formatChanges(changes map[string]any) string {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, changes[k]))
	}
	return strings.Join(parts, " ")
}

// formatDLQ writes dead-letter entries to out.
func formatDLQ(out io.Writer, entries []resilience.DLQEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBMISSION\tRETRIES\tNEXT_RETRY\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----------\t-------\t----------\t-----")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			truncateID(e.ID),
			truncateID(e.SubmissionID),
			e.RetryCount,
			e.MaxRetries,
			e.NextRetryAt.Format("2006-01-02 15:04"),
			truncate(e.Error, 50),
		)
	}
	_ = w.Flush()
}

// formatReplayStats writes a replay summary to out.
func formatReplayStats(out io.Writer, s queue.ReplayStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Dispatched:\t%d\n", s.Dispatched)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Dropped:\t%d\n", s.Dropped)
	_, _ = fmt.Fprintf(w, "Exhausted:\t%d\n", s.Exhausted)
	_, _ = fmt.Fprintf(w, "Swept:\t%d\n", s.Swept)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
