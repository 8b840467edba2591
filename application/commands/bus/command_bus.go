package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"sitemap-backend/pkg/common"
)

// Command is an editor request that may change a session, such as
// commands.MoveNodeCommand. Validate rejects malformed input before any
// handler runs.
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type. The result is handed back
// to the caller of Send unchanged and may be nil.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

// CommandBus routes each command to the one handler registered for its
// concrete type
type CommandBus struct {
	handlers map[reflect.Type]CommandHandler
	pipeline *Pipeline
	mu       sync.RWMutex
}

// NewCommandBus creates a new command bus. Every registered handler is
// wrapped by the given middleware, outermost first.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers: make(map[reflect.Type]CommandHandler),
		pipeline: NewPipeline(middlewares...),
	}
}

// Register binds handler to the concrete type of cmdType. A type can only
// be bound once.
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	b.handlers[t] = b.pipeline.Execute(handler)
	return nil
}

// Send validates cmd and runs its handler. Validation and handler errors
// are wrapped with %w so AppError types survive to the HTTP layer.
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}

	result, err := handler.Handle(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("command handler failed: %w", err)
	}

	return result, nil
}

// Middleware wraps a handler, e.g. to log or time it
type Middleware func(next CommandHandler) CommandHandler

// CommandHandlerFunc lets a plain function serve as a CommandHandler
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// LoggingMiddleware logs every command at debug and failures at warn,
// tagged with the editor session when the context names one
func LoggingMiddleware(logger Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			keys := []interface{}{"type", reflect.TypeOf(cmd).Name()}
			if sessionID, ok := common.GetSessionID(ctx); ok {
				keys = append(keys, "session_id", sessionID)
			}
			start := time.Now()
			logger.Debugw("Executing command", keys...)

			result, err := next.Handle(ctx, cmd)
			if err != nil {
				logger.Warnw("Command failed", append(keys, "error", err, "duration", time.Since(start))...)
			} else {
				logger.Debugw("Command succeeded", append(keys, "duration", time.Since(start))...)
			}

			return result, err
		})
	}
}

// MetricsMiddleware records the outcome of every command
func MetricsMiddleware(recorder Recorder) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)
			recorder.ObserveCommand(reflect.TypeOf(cmd).Name(), err, time.Since(start))
			return result, err
		})
	}
}

// Logger is satisfied by *zap.SugaredLogger
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

// Recorder receives command timings
type Recorder interface {
	ObserveCommand(name string, err error, duration time.Duration)
}

// Pipeline is the fixed middleware stack applied at registration
type Pipeline struct {
	middlewares []Middleware
}

func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{
		middlewares: middlewares,
	}
}

// Execute wraps handler so that the first middleware runs first
func (p *Pipeline) Execute(handler CommandHandler) CommandHandler {
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		handler = p.middlewares[i](handler)
	}
	return handler
}

// ErrHandlerNotFound means no handler was registered for the command type
var ErrHandlerNotFound = errors.New("command handler not found")
