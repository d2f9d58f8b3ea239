package sink

import "context"

type ctxKey struct{}

// FromContext extracts the Sink from ctx, Nop when absent.
func FromContext(ctx context.Context) Sink {
	if ctx == nil {
		return Nop
	}
	if s, ok := ctx.Value(ctxKey{}).(Sink); ok {
		return s
	}
	return Nop
}

// WithSink attaches s to ctx.
func WithSink(ctx context.Context, s Sink) context.Context {
	if s == nil {
		s = Nop
	}
	return context.WithValue(ctx, ctxKey{}, s)
}
