package tchan

import "context"

// Handler is the contract a caller registers under an endpoint name
// (spec.md §4.1 register/getEndpointHandler). Arg1 (the endpoint name)
// has already been consumed by dispatch by the time Handle is called;
// Handle only sees the two remaining call arguments.
type Handler interface {
	Handle(ctx context.Context, arg2, arg3 []byte) (res2, res3 []byte, err error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, arg2, arg3 []byte) (res2, res3 []byte, err error)

// Handle calls f(ctx, arg2, arg3).
func (f HandlerFunc) Handle(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
	return f(ctx, arg2, arg3)
}

// missingHandler is the synthesized handler getEndpointHandler returns for
// an unregistered name (spec.md §4.1): it fails the caller with
// KindNoSuchEndpoint instead of panicking or silently dropping the call.
type missingHandler struct{ name string }

func (m missingHandler) Handle(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
	return nil, nil, noSuchEndpointErr(m.name)
}
