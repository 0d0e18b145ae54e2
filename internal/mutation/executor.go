// Package mutation runs create, update, and delete requests against the
// service and reflects each outcome in the local store and the notification
// center.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/text/cases"

	"github.com/wondertwin-ai/subtrack/internal/remote"
	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

// ErrBusy is returned when an identical mutation is already in flight.
var ErrBusy = errors.New("an identical request is already in progress")

// Remote performs the mutation round trips.
type Remote interface {
	Create(ctx context.Context, p subscription.Payload) (subscription.Subscription, error)
	Update(ctx context.Context, id string, p subscription.Payload) (subscription.Subscription, error)
	Delete(ctx context.Context, id string) error
}

// Applier receives confirmed changes.
type Applier interface {
	ApplyCreated(rec subscription.Subscription) bool
	ApplyUpdated(rec subscription.Subscription) bool
	ApplyDeleted(id string) bool
}

// Notifier raises user-facing messages.
type Notifier interface {
	Success(text string)
	Error(text string)
}

// Kind is the type of a mutation.
type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// verb is the word used in user messages.
func (k Kind) verb() (present, past string) {
	switch k {
	case KindCreate:
		return "add", "added"
	case KindUpdate:
		return "update", "updated"
	default:
		return "delete", "deleted"
	}
}

type key struct {
	kind   Kind
	target string
}

// Executor is safe for concurrent use. Mutations of different kinds or
// targets run independently.
type Executor struct {
	remote   Remote
	store    Applier
	notifier Notifier
	logger   *slog.Logger
	pending  *xsync.MapOf[key, struct{}]
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.logger = l } }

// New creates an Executor.
func New(r Remote, store Applier, n Notifier, opts ...Option) *Executor {
	e := &Executor{
		remote:   r,
		store:    store,
		notifier: n,
		logger:   slog.Default(),
		pending:  xsync.NewMapOf[key, struct{}](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTarget is the pending-guard target for creating a subscription
// named name. A Caser is stateful, so each call gets its own.
func CreateTarget(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// IsPending reports whether a mutation of kind on target is in flight. For
// KindCreate the target is the subscription name.
func (e *Executor) IsPending(kind Kind, target string) bool {
	if kind == KindCreate {
		target = CreateTarget(target)
	}
	_, ok := e.pending.Load(key{kind, target})
	return ok
}

// Create adds a subscription.
func (e *Executor) Create(ctx context.Context, p subscription.Payload) (subscription.Subscription, error) {
	var rec subscription.Subscription
	err := e.run(KindCreate, CreateTarget(p.Name), func() error {
		var err error
		rec, err = e.remote.Create(ctx, p)
		if err != nil {
			return err
		}
		e.store.ApplyCreated(rec)
		return nil
	})
	return rec, err
}

// Update replaces the fields of subscription id.
func (e *Executor) Update(ctx context.Context, id string, p subscription.Payload) (subscription.Subscription, error) {
	var rec subscription.Subscription
	err := e.run(KindUpdate, id, func() error {
		var err error
		rec, err = e.remote.Update(ctx, id, p)
		if err != nil {
			return err
		}
		e.store.ApplyUpdated(rec)
		return nil
	})
	return rec, err
}

// Delete removes subscription id.
func (e *Executor) Delete(ctx context.Context, id string) error {
	return e.run(KindDelete, id, func() error {
		if err := e.remote.Delete(ctx, id); err != nil {
			return err
		}
		e.store.ApplyDeleted(id)
		return nil
	})
}

func (e *Executor) run(kind Kind, target string, call func() error) error {
	k := key{kind, target}
	if _, loaded := e.pending.LoadOrStore(k, struct{}{}); loaded {
		e.logger.Debug("rejecting duplicate mutation", "kind", kind, "target", target)
		return ErrBusy
	}
	defer e.pending.Delete(k)

	present, past := kind.verb()
	if err := call(); err != nil {
		e.logger.Info("mutation failed", "kind", kind, "target", target, "err", err)
		e.notifier.Error(fmt.Sprintf("Failed to %s subscription: %s", present, remote.Reason(err)))
		return err
	}
	e.notifier.Success(fmt.Sprintf("Subscription %s successfully!", past))
	return nil
}
