// Package session owns the single MTProto user session. All network access
// goes through the Bridge, a background worker that executes submitted
// operations one at a time against the one live client, so callers never
// touch the client's connection state concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// ErrBridgeClosed is returned by Submit once the worker has terminated.
var ErrBridgeClosed = errors.New("session bridge is closed")

// Conn bundles the live client handles an operation may use.
type Conn struct {
	API  *tg.Client
	Auth AuthFlow
}

// AuthFlow is the slice of the client's auth surface the state machine needs.
// Satisfied by gotd's *auth.Client.
type AuthFlow interface {
	Status(ctx context.Context) (*auth.Status, error)
	SendCode(ctx context.Context, phone string, options auth.SendCodeOptions) (tg.AuthSentCodeClass, error)
	SignIn(ctx context.Context, phone, code, codeHash string) (*tg.AuthAuthorization, error)
	Password(ctx context.Context, password string) (*tg.AuthAuthorization, error)
}

// Op is a unit of work that needs the live client. It runs on the bridge
// worker, never on the submitting goroutine.
type Op func(ctx context.Context, conn Conn) error

// Options configures the underlying telegram client.
type Options struct {
	APIID   int
	APIHash string
	Storage session.Storage
	Logger  *zap.Logger
}

type job struct {
	op   Op
	done chan error
}

// dialFunc opens the client connection and hands a live Conn to serve. It
// blocks until the connection is torn down. Swappable in tests.
type dialFunc func(ctx context.Context, serve func(ctx context.Context, conn Conn) error) error

// Bridge is a single-writer actor around the MTProto client. The client is
// dialed lazily on the first submitted operation and reused for the process
// lifetime.
type Bridge struct {
	opts   Options
	logger *slog.Logger
	dial   dialFunc

	jobs chan job
	done chan struct{}
}

func NewBridge(opts Options, logger *slog.Logger) *Bridge {
	b := &Bridge{
		opts:   opts,
		logger: logger,
		jobs:   make(chan job),
		done:   make(chan struct{}),
	}
	b.dial = b.dialTelegram
	return b
}

// Start launches the worker. The worker lives until ctx is cancelled or the
// connection fails fatally; after that every Submit fails with
// ErrBridgeClosed.
func (b *Bridge) Start(ctx context.Context) {
	go b.worker(ctx)
}

// Done is closed when the worker has terminated.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Submit runs op on the bridge worker and blocks until it has completed,
// returning whatever the operation returned. Safe for any number of
// concurrent callers; operations are mutually exclusive but not guaranteed
// to run in submission order across callers.
func (b *Bridge) Submit(ctx context.Context, op Op) error {
	j := job{op: op, done: make(chan error, 1)}

	select {
	case b.jobs <- j:
	case <-b.done:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-b.done:
		return ErrBridgeClosed
	}
}

func (b *Bridge) worker(ctx context.Context) {
	defer close(b.done)

	// Lazy init: the connection is not opened until something needs it.
	var first job
	select {
	case <-ctx.Done():
		return
	case first = <-b.jobs:
	}

	served := false
	err := b.dial(ctx, func(ctx context.Context, conn Conn) error {
		served = true
		first.done <- first.op(ctx, conn)
		return b.serve(ctx, conn)
	})

	if !served {
		first.done <- fmt.Errorf("opening session: %w", err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("session worker terminated", "error", err)
	}
}

func (b *Bridge) serve(ctx context.Context, conn Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-b.jobs:
			j.done <- j.op(ctx, conn)
		}
	}
}

func (b *Bridge) dialTelegram(ctx context.Context, serve func(ctx context.Context, conn Conn) error) error {
	client := telegram.NewClient(b.opts.APIID, b.opts.APIHash, telegram.Options{
		SessionStorage: b.opts.Storage,
		Logger:         b.opts.Logger,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		return serve(ctx, Conn{API: client.API(), Auth: client.Auth()})
	})
}
