// Package audit records who changed what. Recording is best effort: a
// failed write is logged and never fails the mutation it describes.
package audit

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/model"
)

// Store is the append-only audit log.
type Store interface {
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	ListAudit(ctx context.Context, targetType, targetID string) ([]model.AuditEntry, error)
}

// Recorder appends audit entries.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder over store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends an entry for actor. Failures are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, actor model.Actor, action model.AuditAction, targetType, targetID string, changes map[string]any) {
	e := &model.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Changes:    changes,
	}
	// The primary mutation already happened; a cancelled request context
	// must not drop its audit record.
	if err := r.store.AppendAudit(context.WithoutCancel(ctx), e); err != nil {
		zap.L().Warn("audit: record failed",
			zap.String("actor", actor.ID),
			zap.String("action", string(action)),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

// List returns the history of a target, oldest first.
func (r *Recorder) List(ctx context.Context, targetType, targetID string) ([]model.AuditEntry, error) {
	entries, err := r.store.ListAudit(ctx, targetType, targetID)
	if err != nil {
		return nil, eris.Wrapf(err, "audit: list %s %s", targetType, targetID)
	}
	return entries, nil
}
