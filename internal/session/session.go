// Package session wires the remote client, the resource store, the mutation
// executor and the notification center into the surface a presentation layer
// drives.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wondertwin-ai/subtrack/internal/clock"
	"github.com/wondertwin-ai/subtrack/internal/config"
	"github.com/wondertwin-ai/subtrack/internal/mutation"
	"github.com/wondertwin-ai/subtrack/internal/notify"
	"github.com/wondertwin-ai/subtrack/internal/remote"
	"github.com/wondertwin-ai/subtrack/internal/resource"
	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

// tokenSubject is the subject claim of tokens minted for the service.
const tokenSubject = "subtrack-cli"

// View is everything needed to render the screen.
type View struct {
	Items     []subscription.Subscription // sorted by name
	Status    resource.Status
	Err       string
	Notice    *notify.Notification // nil when nothing is shown
	Connected string               // service base URL
}

// Session owns one set of components for the lifetime of the application.
type Session struct {
	client   *remote.Client
	store    *resource.Store
	center   *notify.Center
	executor *mutation.Executor
	logger   *slog.Logger
}

type options struct {
	logger *slog.Logger
	clock  clock.Clock
	http   *http.Client
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock sets the time source for notification expiry and fetch stamps.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithHTTPClient replaces the HTTP client used to reach the service.
func WithHTTPClient(h *http.Client) Option { return func(o *options) { o.http = h } }

// New builds a Session from cfg. The Session starts detached from any fetch;
// call Attach or Refresh to load the collection.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default(), clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientOpts := []remote.Option{
		remote.WithTimeout(cfg.Timeout),
		remote.WithLogger(o.logger.With("component", "remote")),
	}
	if o.http != nil {
		clientOpts = append(clientOpts, remote.WithHTTPClient(o.http))
	}
	if cfg.AuthSecret != "" {
		clientOpts = append(clientOpts, remote.WithSigningSecret([]byte(cfg.AuthSecret), tokenSubject))
	}
	client, err := remote.New(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	store := resource.New(client,
		resource.WithLogger(o.logger.With("component", "resource")),
		resource.WithClock(o.clock),
	)
	center := notify.New(
		notify.WithClock(o.clock),
		notify.WithDefaultDuration(cfg.NoticeDuration),
		notify.WithLogger(o.logger.With("component", "notify")),
	)
	executor := mutation.New(client, store, center,
		mutation.WithLogger(o.logger.With("component", "mutation")),
	)

	return &Session{
		client:   client,
		store:    store,
		center:   center,
		executor: executor,
		logger:   o.logger,
	}, nil
}

// Attach re-enables notifications and starts the initial fetch in the
// background.
func (s *Session) Attach(ctx context.Context) {
	s.center.Attach()
	s.store.Attach(ctx)
}

// Detach cancels any in-flight fetch, drops observers, and clears the
// notification along with its timer.
func (s *Session) Detach() {
	s.store.Detach()
	s.center.Detach()
}

// Refresh reloads the collection. A failure raises an error notification; a
// success raises none, so it never hides the outcome of a mutation. A fetch
// superseded by a newer one is not an error.
func (s *Session) Refresh(ctx context.Context) error {
	err := s.store.FetchAll(ctx)
	if errors.Is(err, resource.ErrSuperseded) {
		return nil
	}
	if err != nil {
		s.center.Error("Failed to load subscriptions: " + remote.Reason(err))
	}
	return err
}

// Create adds a subscription and reloads the collection once it succeeds.
func (s *Session) Create(ctx context.Context, p subscription.Payload) (subscription.Subscription, error) {
	rec, err := s.executor.Create(ctx, p)
	if err != nil {
		return rec, err
	}
	s.resync(ctx)
	return rec, nil
}

// Update replaces the fields of subscription id and reloads the collection
// once it succeeds.
func (s *Session) Update(ctx context.Context, id string, p subscription.Payload) (subscription.Subscription, error) {
	rec, err := s.executor.Update(ctx, id, p)
	if err != nil {
		return rec, err
	}
	s.resync(ctx)
	return rec, nil
}

// Delete removes subscription id and reloads the collection once it succeeds.
func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.executor.Delete(ctx, id); err != nil {
		return err
	}
	s.resync(ctx)
	return nil
}

// resync refreshes after a successful mutation. Its failure shows up in the
// view status only; the mutation's own message stays visible.
func (s *Session) resync(ctx context.Context) {
	err := s.store.FetchAll(ctx)
	if err != nil && !errors.Is(err, resource.ErrSuperseded) {
		s.logger.Info("refresh after mutation failed", "err", err)
	}
}

// Find returns the local copy of subscription id.
func (s *Session) Find(id string) (subscription.Subscription, bool) {
	for _, rec := range s.store.Snapshot().Items {
		if rec.ID == id {
			return rec, true
		}
	}
	return subscription.Subscription{}, false
}

// IsPending reports whether a mutation of kind on target is in flight.
func (s *Session) IsPending(kind mutation.Kind, target string) bool {
	return s.executor.IsPending(kind, target)
}

// DismissNotification clears the visible message.
func (s *Session) DismissNotification() {
	s.center.Clear()
}

// View returns the current render state.
func (s *Session) View() View {
	snap := s.store.Snapshot()
	v := View{
		Items:     snap.Sorted(),
		Status:    snap.Status,
		Err:       snap.Err,
		Connected: s.client.BaseURL(),
	}
	if n, ok := s.center.Current(); ok {
		v.Notice = &n
	}
	return v
}

// Subscribe calls fn with a fresh View after every store or notification
// change.
func (s *Session) Subscribe(fn func(View)) (cancel func()) {
	stopStore := s.store.Subscribe(func(resource.Snapshot) { fn(s.View()) })
	stopNotice := s.center.Subscribe(func(notify.Notification, bool) { fn(s.View()) })
	return func() {
		stopStore()
		stopNotice()
	}
}
