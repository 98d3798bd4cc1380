package api

import "context"

// Caller is the client side of a request/response channel built on a
// pair of queues. Call marshals req, sends it to the named method and
// decodes the reply into out.
type Caller interface {
	Call(ctx context.Context, method string, req any, out any) error
	Close()
}

// Handler serves one method on the server side of a channel. The
// returned value is marshaled into the response payload.
type Handler func(ctx context.Context, payload []byte) (any, error)
