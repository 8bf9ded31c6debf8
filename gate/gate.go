// Package gate is a small policy registry for authorization checks.
// Each resource type ("invoice") gets one Policy; handlers and services ask
// the Gate whether a subject may perform an action on a loaded resource.
//
// U is the subject type, typically a user id.
package gate

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized means the subject is anonymous or the policy said no.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoPolicyDefined means nothing was registered for the resource type.
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Gate is the central authorization checkpoint.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

// NewGate creates an empty Gate ready to register policies.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds a policy for a resource type, replacing any previous one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns ErrUnauthorized for the zero subject or a denied action,
// and ErrNoPolicyDefined when resourceType has no policy.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can is Authorize as a boolean.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}
