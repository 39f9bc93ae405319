// Package autosave reconciles long-lived editable forms with the backend.
// A [Session] debounces bursts of local edits into a single-flight save,
// preserves the edit on failure, and invalidates the corresponding cache
// key on success so readers observe the update.
//
// One session exists per editable entity instance, created when the form
// mounts and closed when it unmounts:
//
//	session := autosave.New(ctx, record, saveRecord,
//	    autosave.WithInvalidate(client, syncache.K("bagrut", record.ID)),
//	)
//	defer session.Close()
//
//	// on every form change:
//	session.Edit(updated)
//
// Edits within the debounce window coalesce: only the last value is
// saved. A save carries whatever the pending snapshot holds when the
// timer fires; a snapshot structurally equal to the last persisted one is
// skipped. [Session.SaveNow] bypasses the debounce for explicit "save"
// buttons but still refuses to double-submit while a save is in flight.
package autosave

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/conservo/go-sync/syncache"
)

// DefaultDebounce is the delay between the last edit and the save it
// triggers, unless overridden with WithDebounce.
const DefaultDebounce = 3 * time.Second

var (
	// ErrSaveInFlight is returned by SaveNow while a save is already in
	// progress. The pending edit is kept; it will be saved by the next
	// debounce cycle or SaveNow call.
	ErrSaveInFlight = errors.New("autosave: save already in progress")

	// ErrClosed is returned for operations on a closed session.
	ErrClosed = errors.New("autosave: session closed")
)

// Status describes the session state machine: idle -> saving -> saved or
// error, saved -> idle on the next edit, error -> saving on retry.
type Status int

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// SaveFunc persists a snapshot. It must be an idempotent upsert; any
// non-nil error is a failure and the local edit is preserved.
type SaveFunc[T any] func(ctx context.Context, snapshot T) error

// Invalidator is the slice of the cache client a session needs.
// *syncache.Client satisfies it.
type Invalidator interface {
	InvalidateExact(key syncache.Key)
}

type config struct {
	debounce    time.Duration
	logger      logrus.FieldLogger
	invalidator Invalidator
	readKey     syncache.Key
	clock       func() time.Time
}

// Option configures a Session.
type Option func(*config)

// WithDebounce overrides the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		c.debounce = d
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = log
	}
}

// WithInvalidate wires the session to a cache client: after every
// successful save, key is invalidated so readers refetch the new value.
func WithInvalidate(inv Invalidator, key syncache.Key) Option {
	return func(c *config) {
		c.invalidator = inv
		c.readKey = key
	}
}

// WithClock overrides the time source used for LastSavedAt.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.clock = now
	}
}

// Session is the per-entity auto-save state machine. All methods are safe
// for concurrent use, though in practice a single form owns the session.
type Session[T any] struct {
	id   string
	ctx  context.Context
	save SaveFunc[T]
	cfg  config
	log  logrus.FieldLogger

	mu         sync.Mutex
	timer      *time.Timer
	pending    T
	hasPending bool
	pendingFP  uint64
	pendingOK  bool
	syncedFP   uint64
	synced     bool
	editGen    uint64
	savedGen   uint64
	saving     bool
	status     Status
	lastSaved  time.Time
	lastErr    error
	closed     bool
}

// New creates a session for one editable entity. initial is the value as
// currently persisted (typically the value the form was populated from);
// an edit that returns the form to this value will not trigger a save.
func New[T any](ctx context.Context, initial T, save SaveFunc[T], opts ...Option) *Session[T] {
	cfg := config{
		debounce: DefaultDebounce,
		clock:    time.Now,
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	cfg.logger = silent
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session[T]{
		id:     uuid.NewString(),
		ctx:    ctx,
		save:   save,
		cfg:    cfg,
		status: StatusIdle,
	}
	s.log = cfg.logger.WithField("session", s.id)
	if fp, err := fingerprint(initial); err == nil {
		s.syncedFP = fp
		s.synced = true
	}
	return s
}

// ID returns the session handle.
func (s *Session[T]) ID() string {
	return s.id
}

// Edit replaces the pending snapshot and re-arms the debounce timer,
// cancelling any previously armed one. Rapid edit bursts therefore
// collapse into one save carrying the last value.
func (s *Session[T]) Edit(snapshot T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = snapshot
	s.hasPending = true
	s.editGen++
	fp, err := fingerprint(snapshot)
	s.pendingFP, s.pendingOK = fp, err == nil
	if err != nil {
		s.log.WithError(err).Warn("snapshot not encodable, treating as dirty")
	}
	if s.status == StatusSaved {
		s.status = StatusIdle
	}
	s.armTimerLocked()
}

// SaveNow bypasses the debounce timer and saves the pending snapshot
// synchronously. It returns ErrSaveInFlight if a save is already running
// and nil without side effects when there is nothing to save. The save
// error, if any, is returned and also retained for Err — SaveNow doubles
// as the manual retry path after a failure.
func (s *Session[T]) SaveNow() error {
	return s.flush(s.ctx)
}

// Dirty reports whether the pending snapshot differs from the last value
// confirmed persisted.
func (s *Session[T]) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

// Status returns the current state machine state.
func (s *Session[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastSavedAt returns when the last save resolved successfully, zero if
// never.
func (s *Session[T]) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Err returns the failure of the most recent save attempt, nil after a
// success.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops the debounce timer and rejects further edits. A save
// already in flight is allowed to settle, but no new save is started:
// callers that want the final edits persisted should SaveNow first.
func (s *Session[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session[T]) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.debounce, func() {
		_ = s.flush(s.ctx)
	})
}

// dirtyLocked is the structural-inequality check: a save is due when
// something was edited since the last successful save and the pending
// snapshot does not fingerprint-match the last persisted one.
func (s *Session[T]) dirtyLocked() bool {
	if !s.hasPending || s.editGen == s.savedGen {
		return false
	}
	if s.pendingOK && s.synced && s.pendingFP == s.syncedFP {
		return false
	}
	return true
}

// flush performs one single-flight save of the pending snapshot.
func (s *Session[T]) flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	if !s.dirtyLocked() {
		s.mu.Unlock()
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	snapshot := s.pending
	gen := s.editGen
	fp, fpOK := s.pendingFP, s.pendingOK
	s.saving = true
	s.status = StatusSaving
	s.mu.Unlock()

	err := s.save(ctx, snapshot)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		s.status = StatusError
		s.lastErr = err
		s.mu.Unlock()
		s.log.WithError(err).Warn("save failed, keeping local edit")
		return errors.Wrap(err, "autosave: save failed")
	}
	s.savedGen = gen
	if fpOK {
		s.syncedFP = fp
		s.synced = true
	}
	s.status = StatusSaved
	s.lastSaved = s.cfg.clock()
	s.lastErr = nil
	// Edits that arrived while the save was running get their own cycle.
	if !s.closed && s.dirtyLocked() {
		s.armTimerLocked()
	}
	inv, key := s.cfg.invalidator, s.cfg.readKey
	s.mu.Unlock()

	if inv != nil {
		inv.InvalidateExact(key)
	}
	s.log.Debug("saved")
	return nil
}

func fingerprint(v any) (uint64, error) {
	encoded, err := msgpack.Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(encoded), nil
}
