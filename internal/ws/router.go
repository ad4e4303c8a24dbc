package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformed   = errors.New("invalid message format")
	ErrUnknownType = errors.New("unknown message type")
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *Conn, frame []byte) error

// Router keeps a map[type]handler, à‑la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]rawHandler), validate: validator.New()}
}

// Register binds a message type to a strongly‑typed handler. The whole
// frame is decoded into Req and validated before h runs.
func Register[Req any](
	r *Router,
	msgType string,
	h func(ctx context.Context, c *Conn, req Req) error,
) {
	if msgType == "" {
		panic("ws router: empty message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[msgType] = func(ctx context.Context, c *Conn, frame []byte) error {
		var req Req
		if err := json.Unmarshal(frame, &req); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := r.validate.Struct(req); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the server's reader loop with one raw frame.
func (r *Router) dispatch(ctx context.Context, c *Conn, frame []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}

	r.mu.RLock()
	h, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		return env.Type, ErrUnknownType
	}
	return env.Type, h(ctx, c, frame)
}
