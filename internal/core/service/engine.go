package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

const defaultOpTimeout = 5 * time.Second

// Engine is the single entry point used by transports and tools. Each
// operation runs in exactly one store transaction.
type Engine struct {
	*CatalogService
	*BorrowerService
	*LendingService
}

type options struct {
	logger    zerolog.Logger
	clock     func() time.Time
	timeout   time.Duration
	guard     port.RequestGuard
	publisher port.EventPublisher
}

type Option func(*options)

// WithLogger sets the logger for the engine. Committed mutations are logged
// at Info, rejected operations at Debug and rollbacks caused by the store at Error.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the clock used for default borrow and return dates.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithOpTimeout bounds every operation. Zero disables the bound.
func WithOpTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

func WithRequestGuard(guard port.RequestGuard) Option {
	return func(o *options) {
		o.guard = guard
	}
}

func WithEventPublisher(publisher port.EventPublisher) Option {
	return func(o *options) {
		if publisher != nil {
			o.publisher = publisher
		}
	}
}

func NewEngine(store port.Store, opts ...Option) *Engine {
	o := options{
		logger:    zerolog.Nop(),
		clock:     time.Now,
		timeout:   defaultOpTimeout,
		publisher: noopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := runner{store: store, log: o.logger, timeout: o.timeout}
	return &Engine{
		CatalogService:  &CatalogService{runner: r},
		BorrowerService: &BorrowerService{runner: r},
		LendingService: &LendingService{
			runner:    r,
			clock:     o.clock,
			guard:     o.guard,
			publisher: o.publisher,
		},
	}
}

type runner struct {
	store   port.Store
	log     zerolog.Logger
	timeout time.Duration
}

func (r runner) run(ctx context.Context, op string, fn func(ctx context.Context, tx port.Tx) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := r.store.InTx(ctx, fn)
	if err == nil {
		return nil
	}
	if !isTyped(err) {
		err = &domain.StorageError{Op: op, Err: err}
	}

	if errors.Is(err, domain.ErrStorage) {
		r.log.Error().Err(err).Str("op", op).Msg("operation rolled back")
	} else {
		r.log.Debug().Err(err).Str("op", op).Msg("operation rejected")
	}
	return err
}

// detached keeps ctx values but not its cancellation, for work that has to
// finish after a commit. It is still bounded by the operation timeout.
func (r runner) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, func() {}
}

var typedErrors = []error{
	domain.ErrValidation,
	domain.ErrDuplicateKey,
	domain.ErrReferentialConflict,
	domain.ErrOutOfStock,
	domain.ErrAlreadyReturned,
	domain.ErrNotFound,
	domain.ErrStorage,
	domain.ErrDuplicateRequest,
}

func isTyped(err error) bool {
	for _, target := range typedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.LendingEvent) error { return nil }
