package types

import "context"

// ActorType identifies where a command originated.
type ActorType string

const (
	ActorTypeConsole ActorType = "console"
	ActorTypeAPIKey  ActorType = "api_key"
	ActorTypeSystem  ActorType = "system"
)

// Actor represents the entity invoking an operator command.
type Actor struct {
	ID   string
	Type ActorType
	// Operator is true when the actor holds the elevated privilege required
	// by every mutating command.
	Operator bool
}

// Context Keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
