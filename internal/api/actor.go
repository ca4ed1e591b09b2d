package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sells-group/sports-intake/internal/model"
)

// Identity headers set by the upstream gateway.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

type actorKey struct{}

// actorFromHeaders puts the calling actor on the request context. Requests
// without an actor id continue anonymously and are refused by the service.
func actorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := model.Actor{
			ID:   strings.TrimSpace(r.Header.Get(headerActorID)),
			Role: model.RoleMember,
		}
		if strings.EqualFold(strings.TrimSpace(r.Header.Get(headerActorRole)), string(model.RoleAdmin)) {
			a.Role = model.RoleAdmin
		}
		if a.ID == "" {
			a.Role = ""
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), a)))
	})
}

func withActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom returns the actor on ctx, or the zero actor.
func actorFrom(ctx context.Context) model.Actor {
	a, _ := ctx.Value(actorKey{}).(model.Actor)
	return a
}
