package tokentrack

import "context"

type contextKey struct{}

// WithSession binds a session to the request context. Sessions must be
// request-scoped; never store one in process-global state.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the bound session, or nil when tracking is inactive.
// All Session methods tolerate a nil receiver.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
