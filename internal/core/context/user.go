// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Actor identifies who issued a request. Authentication happens upstream;
// the ledger only records the name it is given.
type Actor struct {
	UserID string
	Source string // "http", "cli", "worker"
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetUserID returns the acting user ID or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}
