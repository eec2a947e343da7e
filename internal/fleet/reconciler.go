package fleet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fleet/internal/device"
)

// Logger defines the logging interface used by the fleet services.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// IdentityResolver supplies the local serial when a report omits it.
// It never fails; it returns a sentinel instead.
type IdentityResolver interface {
	ResolveSerial(ctx context.Context) string
}

// LocationResolver supplies the local address and host name.
// ResolveIP never fails; it returns a fallback instead.
type LocationResolver interface {
	ResolveIP(ctx context.Context) string
	Hostname() string
}

// AssignRequest binds a device to a user account.
type AssignRequest struct {
	Serial string `json:"serial"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// RegisterRequest is a device announcing its current location.
//
// Remote marks a report relayed from another host. Its serial must be
// present, and a missing address leaves the stored one untouched instead of
// being filled from this host.
type RegisterRequest struct {
	Serial    string `json:"serial"`
	IPAddress string `json:"ip_address"`
	Remote    bool   `json:"-"`
}

// Registration is the outcome of RegisterDevice. UserID and Email echo
// the stored owner, nil when the device is unassigned.
type Registration struct {
	Serial    string  `json:"serial"`
	IPAddress string  `json:"ip_address"`
	UserID    *string `json:"user_id"`
	Email     *string `json:"email"`
	Created   bool    `json:"-"`
}

// Reconciler merges self-reports into the device store.
// It is safe for concurrent use, including SetLogger and SetEventSink
// while reports are in flight.
type Reconciler struct {
	store    device.Store
	identity IdentityResolver
	location LocationResolver
	now      func() time.Time

	mu     sync.RWMutex
	sink   EventSink
	logger Logger
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store device.Store, identity IdentityResolver, location LocationResolver) *Reconciler {
	return &Reconciler{
		store:    store,
		identity: identity,
		location: location,
		sink:     discardSink{},
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetEventSink sets where reconciliation events are published.
func (r *Reconciler) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = discardSink{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *Reconciler) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func (r *Reconciler) eventSink() EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sink
}

// AssignUser binds the device identified by req.Serial (resolved locally
// when empty) to the given user. An existing record keeps its address and
// registration time; a new one is created without an address.
//
// Returns:
//   - *device.Record: The stored record after the assignment
//   - error: *ValidationError, or a store error
func (r *Reconciler) AssignUser(ctx context.Context, req AssignRequest) (*device.Record, error) {
	userID := strings.TrimSpace(req.UserID)
	email := strings.TrimSpace(req.Email)

	var missing []string
	if userID == "" {
		missing = append(missing, "user_id")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing, Message: msgAssignMissing}
	}

	serial := r.resolveSerial(ctx, req.Serial)
	if serial == "" {
		return nil, &ValidationError{Fields: []string{"serial"}, Message: msgAssignMissing}
	}

	fields := device.Fields{UserID: &userID, Email: &email}
	rec, created, err := r.reconcile(ctx, serial, fields)
	if err != nil {
		return nil, err
	}

	r.log().Info("device assigned",
		"serial", serial,
		"user_id", userID,
		"created", created,
	)
	r.emit(ctx, EventAssigned, rec, created)

	return rec, nil
}

// RegisterDevice records the current address of the device identified by
// req.Serial. Missing serial and address are resolved locally unless
// req.Remote is set. An existing record keeps its owner, which is echoed
// back in the Registration.
//
// Returns:
//   - *Registration: What was stored and whether the record is new
//   - error: *ValidationError, or a store error
func (r *Reconciler) RegisterDevice(ctx context.Context, req RegisterRequest) (*Registration, error) {
	serial := strings.TrimSpace(req.Serial)
	if !req.Remote {
		serial = r.resolveSerial(ctx, serial)
	}
	if serial == "" {
		return nil, &ValidationError{Fields: []string{"serial"}, Message: msgSerialUnknown}
	}

	ip := strings.TrimSpace(req.IPAddress)
	if ip == "" && !req.Remote {
		ip = r.location.ResolveIP(ctx)
	}

	var fields device.Fields
	if ip != "" {
		fields.IPAddress = device.StringPtr(ip)
	}

	rec, created, err := r.reconcile(ctx, serial, fields)
	if err != nil {
		return nil, err
	}
	ip = device.Deref(rec.IPAddress)

	eventType := EventHeartbeat
	if created {
		eventType = EventRegistered
		r.log().Info("device registered", "serial", serial, "ip_address", ip)
	} else {
		r.log().Debug("device heartbeat", "serial", serial, "ip_address", ip)
	}
	r.emit(ctx, eventType, rec, created)

	return &Registration{
		Serial:    rec.Serial,
		IPAddress: ip,
		UserID:    rec.UserID,
		Email:     rec.Email,
		Created:   created,
	}, nil
}

func (r *Reconciler) resolveSerial(ctx context.Context, serial string) string {
	if s := strings.TrimSpace(serial); s != "" {
		return s
	}
	return r.identity.ResolveSerial(ctx)
}

// reconcile writes fields onto the record for serial, creating it when
// absent. It reports whether a record was created.
func (r *Reconciler) reconcile(ctx context.Context, serial string, fields device.Fields) (*device.Record, bool, error) {
	candidate := &device.Record{Serial: serial, RegisteredAt: r.now().UTC()}
	fields.Apply(candidate)

	if upserter, ok := r.store.(device.Upserter); ok {
		stored, err := upserter.Upsert(ctx, candidate, fields)
		if err != nil {
			return nil, false, err
		}
		return stored, stored.ID == candidate.ID, nil
	}

	existing, err := r.store.FindBySerial(ctx, serial)
	switch {
	case err == nil:
		if err := r.store.UpdateFields(ctx, serial, fields); err != nil {
			return nil, false, err
		}
		fields.Apply(existing)
		return existing, false, nil

	case !errors.Is(err, device.ErrDeviceNotFound):
		return nil, false, err
	}

	err = r.store.Insert(ctx, candidate)
	if err == nil {
		return candidate, true, nil
	}
	if !errors.Is(err, device.ErrDeviceExists) {
		return nil, false, err
	}

	// A concurrent first report created the record between the lookup
	// and the insert. Rather than failing this report with a store error,
	// it is applied as an update, so both concurrent first reports succeed.
	r.log().Debug("insert lost race, updating instead", "serial", serial)
	if err := r.store.UpdateFields(ctx, serial, fields); err != nil {
		return nil, false, err
	}
	stored, err := r.store.FindBySerial(ctx, serial)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *Reconciler) emit(ctx context.Context, eventType EventType, rec *device.Record, created bool) {
	event := Event{
		Type:      eventType,
		Serial:    rec.Serial,
		IPAddress: device.Deref(rec.IPAddress),
		UserID:    device.Deref(rec.UserID),
		Email:     device.Deref(rec.Email),
		Created:   created,
		Source:    SourceFrom(ctx),
		Timestamp: r.now().UTC(),
	}
	if err := r.eventSink().Publish(ctx, event); err != nil {
		r.log().Warn("publishing fleet event failed",
			"type", string(eventType),
			"serial", rec.Serial,
			"error", err,
		)
	}
}
