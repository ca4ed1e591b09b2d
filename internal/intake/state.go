package intake

import "github.com/sells-group/sports-intake/internal/model"

// transitions lists the allowed status moves. Completed and Failed are
// entered only by the extraction runner.
var transitions = map[model.Status][]model.Status{
	model.StatusDraft:      {model.StatusProcessing},
	model.StatusFailed:     {model.StatusProcessing},
	model.StatusProcessing: {model.StatusCompleted, model.StatusFailed},
}

// CanTransition reports whether a submission may move from one status to another.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf returns the statuses that may move to to, in a stable order.
func sourcesOf(to model.Status) []model.Status {
	var out []model.Status
	for _, from := range []model.Status{model.StatusDraft, model.StatusProcessing, model.StatusCompleted, model.StatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
