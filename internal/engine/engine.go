// Package engine implements the VPS lifecycle state machine. Every status
// transition in the system goes through one of its operations: policy is
// checked first, then the hypervisor is driven, then the registry commit
// makes the transition durable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"vpsd/internal/hypervisor"
	"vpsd/internal/models"
	"vpsd/internal/policy"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

// SystemPrincipal marks operations initiated by the engine's own control
// loops rather than a human. It bypasses the role check on Suspend but must
// always carry a non-empty reason.
const SystemPrincipal = "system"

var (
	// ErrInvalidRequest covers malformed operation arguments.
	ErrInvalidRequest = errors.New("invalid request")

	customerRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)
)

// PersistError means the hypervisor already applied a state change but the
// registry write failed, leaving host and registry diverged. It must be
// escalated, never swallowed.
type PersistError struct {
	ID  string
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("CRITICAL: registry write failed after %s of %s, hypervisor and registry diverged: %v", e.Op, e.ID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Notifier receives lifecycle events. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ev models.Event)
}

// Engine orchestrates policy checks, driver calls, and registry commits.
type Engine struct {
	reg           *registry.Registry
	driver        hypervisor.Driver
	log           *utils.Logger
	metrics       *Metrics
	driverTimeout time.Duration
	notifiers     []Notifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithDriverTimeout bounds each hypervisor call made by the engine.
func WithDriverTimeout(d time.Duration) Option {
	return func(e *Engine) { e.driverTimeout = d }
}

// WithMetrics attaches operation counters.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over the given registry and driver.
func New(reg *registry.Registry, driver hypervisor.Driver, log *utils.Logger, opts ...Option) *Engine {
	e := &Engine{
		reg:           reg,
		driver:        driver,
		log:           log,
		driverTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddNotifier registers an event sink. Not safe to call after the engine
// starts serving requests.
func (e *Engine) AddNotifier(n Notifier) {
	e.notifiers = append(e.notifiers, n)
}

// Get returns the record for id.
func (e *Engine) Get(id string) (*models.VPS, error) {
	return e.reg.Get(id)
}

// List returns all records.
func (e *Engine) List() []*models.VPS {
	return e.reg.List()
}

// Create provisions a new instance for customer. Admin-gated. On driver
// failure nothing is written; the identifier never becomes visible.
func (e *Engine) Create(ctx context.Context, principal string, memoryGB, cores int, customer string) (*models.VPS, error) {
	s := e.reg.Settings()
	if err := policy.Authorize(s, principal, policy.RoleAdmin); err != nil {
		return nil, e.done("create", err)
	}
	if memoryGB <= 0 || cores <= 0 {
		return nil, e.done("create", fmt.Errorf("%w: memory and cores must be positive", ErrInvalidRequest))
	}
	if !customerRe.MatchString(customer) {
		return nil, e.done("create", fmt.Errorf("%w: customer must match %s", ErrInvalidRequest, customerRe))
	}

	storage, err := policy.ComputeStorage(s, memoryGB)
	if err != nil {
		return nil, e.done("create", err)
	}

	// Capacity is checked against one registry snapshot. Two concurrent
	// creates may both pass a check that combined would overshoot a cap;
	// the registry offers no global creation lock.
	requested := policy.Totals{RAM: float64(memoryGB), CPU: float64(cores), Storage: storage}
	if err := policy.CheckCapacity(s, requested, policy.TotalsOf(e.reg.List())); err != nil {
		return nil, e.done("create", err)
	}

	seq, err := e.reg.NextSequence(customer)
	if err != nil {
		return nil, e.done("create", err)
	}
	id := fmt.Sprintf("vps-%s-%d", customer, seq)

	unlock := e.reg.LockID(id)
	defer unlock()

	if err := e.allocate(ctx, hypervisor.Spec{ID: id, MemoryGB: memoryGB, Cores: cores, StorageGB: storage}); err != nil {
		return nil, e.done("create", err)
	}

	v := &models.VPS{
		ID:        id,
		Memory:    memoryGB,
		Cores:     cores,
		Storage:   storage,
		Customer:  customer,
		Status:    models.StatusRunning,
		Sequence:  seq,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.reg.Put(v); err != nil {
		perr := &PersistError{ID: id, Op: "allocate", Err: err}
		e.log.Write(perr.Error())
		return nil, e.done("create", perr)
	}

	e.emit(models.Event{Type: models.EventCreated, VPSID: id, Customer: customer, Time: time.Now().UTC()})
	return v, e.done("create", nil)
}

// Suspend pauses an instance. Admin-gated for human principals; the system
// principal bypasses the role check but must supply a reason. Suspending an
// already-suspended instance is a success no-op, which makes manual and
// automatic suspension safe to race.
func (e *Engine) Suspend(ctx context.Context, principal, id, reason string) (*models.VPS, error) {
	reason = strings.TrimSpace(reason)
	if principal == SystemPrincipal {
		if reason == "" {
			return nil, e.done("suspend", fmt.Errorf("%w: system suspend requires a reason", ErrInvalidRequest))
		}
	} else {
		if err := policy.Authorize(e.reg.Settings(), principal, policy.RoleAdmin); err != nil {
			return nil, e.done("suspend", err)
		}
	}

	unlock := e.reg.LockID(id)
	defer unlock()

	v, err := e.reg.Get(id)
	if err != nil {
		return nil, e.done("suspend", err)
	}
	if v.Status == models.StatusSuspended {
		return v, e.done("suspend", nil)
	}

	if err := e.callDriver(ctx, func(ctx context.Context) error {
		return e.driver.Suspend(ctx, id)
	}); err != nil {
		return nil, e.done("suspend", err)
	}

	v.Status = models.StatusSuspended
	if err := e.reg.Put(v); err != nil {
		perr := &PersistError{ID: id, Op: "suspend", Err: err}
		e.log.Write(perr.Error())
		return nil, e.done("suspend", perr)
	}

	evType := models.EventSuspended
	if principal == SystemPrincipal {
		evType = models.EventAutoSuspended
		if e.metrics != nil {
			e.metrics.AutoSuspends.Inc()
		}
	}
	e.emit(models.Event{Type: evType, VPSID: id, Customer: v.Customer, Reason: reason, Time: time.Now().UTC()})
	return v, e.done("suspend", nil)
}

// Resume unpauses an instance. Admin-gated; a running instance is a
// success no-op.
func (e *Engine) Resume(ctx context.Context, principal, id string) (*models.VPS, error) {
	if err := policy.Authorize(e.reg.Settings(), principal, policy.RoleAdmin); err != nil {
		return nil, e.done("resume", err)
	}

	unlock := e.reg.LockID(id)
	defer unlock()

	v, err := e.reg.Get(id)
	if err != nil {
		return nil, e.done("resume", err)
	}
	if v.Status == models.StatusRunning {
		return v, e.done("resume", nil)
	}

	if err := e.callDriver(ctx, func(ctx context.Context) error {
		return e.driver.Resume(ctx, id)
	}); err != nil {
		return nil, e.done("resume", err)
	}

	v.Status = models.StatusRunning
	if err := e.reg.Put(v); err != nil {
		perr := &PersistError{ID: id, Op: "resume", Err: err}
		e.log.Write(perr.Error())
		return nil, e.done("resume", perr)
	}

	e.emit(models.Event{Type: models.EventResumed, VPSID: id, Customer: v.Customer, Time: time.Now().UTC()})
	return v, e.done("resume", nil)
}

// SetStorageRatio updates the global storage-per-GB ratio. Owner-only.
// Existing records keep the storage they were created with.
func (e *Engine) SetStorageRatio(principal string, ramGB int, perStorageGB float64) error {
	if err := policy.Authorize(e.reg.Settings(), principal, policy.RoleOwner); err != nil {
		return e.done("set_storage", err)
	}
	if ramGB <= 0 || perStorageGB <= 0 {
		return e.done("set_storage", fmt.Errorf("%w: ratio values must be positive", ErrInvalidRequest))
	}
	return e.done("set_storage", e.reg.UpdateSettings(func(s *models.Settings) {
		s.StoragePerGB = perStorageGB
	}))
}

// SetCaps overwrites the global resource ceilings wholesale. A nil field
// unsets the dimension; partial updates are not supported. Admin-gated.
func (e *Engine) SetCaps(principal string, ram, cpu, storage *float64) error {
	if err := policy.Authorize(e.reg.Settings(), principal, policy.RoleAdmin); err != nil {
		return e.done("set_caps", err)
	}
	return e.done("set_caps", e.reg.UpdateSettings(func(s *models.Settings) {
		s.MaxResources = &models.Caps{RAM: ram, CPU: cpu, Storage: storage}
	}))
}

func (e *Engine) allocate(ctx context.Context, spec hypervisor.Spec) error {
	return e.callDriver(ctx, func(ctx context.Context) error {
		return e.driver.Allocate(ctx, spec)
	})
}

func (e *Engine) callDriver(ctx context.Context, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.driverTimeout)
	defer cancel()
	return call(ctx)
}

// emit fans events out asynchronously; a slow or failing sink never blocks
// or fails the operation that produced the event.
func (e *Engine) emit(ev models.Event) {
	sinks := e.notifiers
	go func() {
		for _, n := range sinks {
			n.Notify(ev)
		}
	}()
}

func (e *Engine) done(op string, err error) error {
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.metrics.Operations.WithLabelValues(op, outcome).Inc()
	}
	return err
}
