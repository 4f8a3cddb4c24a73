package reconcile

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/logx"
	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/metrics"
)

// Reconciler converges one resource type on Create and Update.
type Reconciler interface {
	// Schema returns the JSON schema ResourceProperties must satisfy, or "".
	Schema() string
	Reconcile(ctx context.Context, req Request) (Outcome, error)
}

// Outcome is what a successful reconciliation reports.
type Outcome struct {
	PhysicalResourceID string
	Data               map[string]any
}

// Dispatcher routes requests to reconcilers and turns every request into
// exactly one Result.
type Dispatcher struct {
	routes      map[string]Reconciler
	defaultType string
	reserve     time.Duration
	newID       func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDefaultResourceType routes requests that carry no ResourceType.
func WithDefaultResourceType(t string) Option {
	return func(d *Dispatcher) { d.defaultType = strings.TrimSpace(t) }
}

// WithSignalReserve keeps d free before the invocation deadline so the
// result can still be signaled when reconciliation runs long.
func WithSignalReserve(d time.Duration) Option {
	return func(ds *Dispatcher) { ds.reserve = d }
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		routes: map[string]Reconciler{},
		newID:  func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register routes every alias to rec. Aliases are matched case-insensitively.
func (d *Dispatcher) Register(rec Reconciler, aliases ...string) {
	for _, a := range aliases {
		d.routes[normalizeType(a)] = rec
	}
}

// ResourceTypes lists the registered aliases.
func (d *Dispatcher) ResourceTypes() []string {
	out := make([]string, 0, len(d.routes))
	for k := range d.routes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatch reconciles req and returns its result. It never panics and never
// returns an empty result. Delete requests succeed without touching anything.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	resourceType := d.resourceType(req)
	ctx = d.requestContext(ctx, req, resourceType)
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	res := d.dispatch(ctx, req, resourceType)

	requestType := string(req.RequestType)
	if !req.RequestType.valid() {
		requestType = "unknown"
	}
	metrics.ObserveReconcile(d.metricLabel(resourceType), requestType, string(res.Status))
	ev := logger.Info()
	if res.Status == Failed {
		ev = logger.Warn().Str("reason", res.Reason)
	}
	ev.Str("action", "reconcile").
		Str("status", string(res.Status)).
		Str("physical_resource_id", res.PhysicalResourceID).
		Dur("elapsed_ms", time.Since(start)).
		Msg("request reconciled")
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, resourceType string) Result {
	physicalID := d.physicalID(req)

	if req.RequestType == Delete {
		// Backups and trust providers outlive the stack that created them.
		zerolog.Ctx(ctx).Info().Str("action", "reconcile").Msg("delete is a no-op; resource retained")
		return succeed(req, physicalID, nil)
	}
	if !req.RequestType.valid() {
		return fail(req, physicalID, Malformed("dispatch", fmt.Errorf("%w: %q", ErrUnknownRequestType, req.RequestType)))
	}

	rec, ok := d.routes[normalizeType(resourceType)]
	if !ok {
		return fail(req, physicalID, Malformed("dispatch", fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)))
	}
	if err := ValidateProperties(rec.Schema(), req.ResourceProperties); err != nil {
		return fail(req, physicalID, err)
	}

	out, err := d.run(ctx, rec, req)
	if err != nil {
		return fail(req, physicalID, err)
	}
	if out.PhysicalResourceID != "" {
		physicalID = out.PhysicalResourceID
	}
	return succeed(req, physicalID, out.Data)
}

// run invokes rec under the reserve deadline and recovers panics.
func (d *Dispatcher) run(ctx context.Context, rec Reconciler, req Request) (out Outcome, err error) {
	reserve := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok && d.reserve > 0 {
		reserve = clampReserve(d.reserve, time.Until(deadline))
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-reserve))
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Str("action", "reconcile").
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("reconciler panicked")
			out = Outcome{}
			err = E(KindInternal, "reconcile", fmt.Errorf("panic: %v", r))
		}
	}()
	out, err = rec.Reconcile(ctx, req)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w (deadline reserve %s)", err, reserve)
	}
	return out, err
}

// clampReserve caps the reserve at half of the remaining budget so a short
// invocation timeout still leaves the reconciler a live context.
func clampReserve(reserve, remaining time.Duration) time.Duration {
	if remaining <= 0 {
		return 0
	}
	return min(reserve, remaining/2)
}

// physicalID echoes the request's id or assigns <LogicalResourceId>-<uuid8>.
func (d *Dispatcher) physicalID(req Request) string {
	if req.PhysicalResourceID != "" {
		return req.PhysicalResourceID
	}
	logical := req.LogicalResourceID
	if logical == "" {
		logical = "resource"
	}
	return logical + "-" + d.newID()
}

// Handle dispatches req and delivers the result through sig.
func (d *Dispatcher) Handle(ctx context.Context, req Request, sig Signaler) (Result, error) {
	res := d.Dispatch(ctx, req)
	ctx = d.requestContext(ctx, req, d.resourceType(req))
	return sig.Signal(ctx, req, res)
}

// resourceType is the request's resource type, or the default when it has none.
func (d *Dispatcher) resourceType(req Request) string {
	if strings.TrimSpace(req.ResourceType) == "" {
		return d.defaultType
	}
	return req.ResourceType
}

func (d *Dispatcher) requestContext(ctx context.Context, req Request, resourceType string) context.Context {
	return logx.ForRequest(ctx, logx.RequestFields{
		RequestID:         req.RequestID,
		StackID:           req.StackID,
		LogicalResourceID: req.LogicalResourceID,
		RequestType:       string(req.RequestType),
		ResourceType:      resourceType,
	})
}

// metricLabel bounds the resource_type label to registered aliases.
func (d *Dispatcher) metricLabel(resourceType string) string {
	t := normalizeType(resourceType)
	if _, ok := d.routes[t]; ok {
		return t
	}
	return "unknown"
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
