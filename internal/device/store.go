package device

import "context"

// Store defines the persistence operations for device records.
// Implementations must be safe for concurrent use.
type Store interface {
	// FindBySerial returns the record for serial.
	// Returns ErrDeviceNotFound if none exists.
	FindBySerial(ctx context.Context, serial string) (*Record, error)

	// Insert creates a record. ID and RegisteredAt are filled in when zero.
	// Returns a *StoreError wrapping ErrDeviceExists if the serial is taken.
	Insert(ctx context.Context, rec *Record) error

	// UpdateFields writes only the columns set in fields.
	// Returns ErrDeviceNotFound if no record matched.
	UpdateFields(ctx context.Context, serial string, fields Fields) error

	// ListAll returns every record ordered by RegisteredAt, then Serial.
	ListAll(ctx context.Context) ([]Record, error)
}

// Upserter is implemented by stores that can insert-or-update in one
// atomic step keyed on serial.
type Upserter interface {
	// Upsert inserts rec when its serial is unseen. Otherwise it writes
	// fields onto the existing record. The stored record is returned;
	// its ID equals rec.ID only when a row was inserted.
	Upsert(ctx context.Context, rec *Record, fields Fields) (*Record, error)
}
