package fleet

import (
	"context"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-fleet/internal/device"
)

// Snapshot is what the local device reports about itself.
type Snapshot struct {
	Serial    string    `json:"serial"`
	IPAddress string    `json:"ip_address"`
	Hostname  string    `json:"hostname"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryService answers read-only fleet questions.
type QueryService struct {
	store    device.Store
	identity IdentityResolver
	location LocationResolver
	now      func() time.Time
}

// NewQueryService creates a QueryService over store.
func NewQueryService(store device.Store, identity IdentityResolver, location LocationResolver) *QueryService {
	return &QueryService{
		store:    store,
		identity: identity,
		location: location,
		now:      time.Now,
	}
}

// CheckDevice returns the stored record for serial, resolving the local
// serial when it is empty. Returns device.ErrDeviceNotFound when absent.
func (q *QueryService) CheckDevice(ctx context.Context, serial string) (*device.Record, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		serial = q.identity.ResolveSerial(ctx)
	}
	if serial == "" {
		return nil, &ValidationError{Fields: []string{"serial"}, Message: msgSerialUnknown}
	}
	return q.store.FindBySerial(ctx, serial)
}

// ListDevices returns every stored record ordered by registration time.
func (q *QueryService) ListDevices(ctx context.Context) ([]device.Record, error) {
	return q.store.ListAll(ctx)
}

// DeviceInfo reports the local device's identity without touching the store.
func (q *QueryService) DeviceInfo(ctx context.Context) Snapshot {
	return Snapshot{
		Serial:    q.identity.ResolveSerial(ctx),
		IPAddress: q.location.ResolveIP(ctx),
		Hostname:  q.location.Hostname(),
		Timestamp: q.now(),
	}
}
