// Package device provides the device store for Gray Logic Fleet.
//
// A device is a physical field unit identified by its hardware serial.
// The store keeps one Record per serial holding the unit's last known IP
// address and, optionally, the user account it is assigned to.
//
// # Key Types
//
//   - Record: One row of the devices table
//   - Fields: A partial update restricted to user_id, email and ip_address
//   - Store: Persistence contract used by the fleet reconciler
//   - Upserter: Optional atomic insert-or-update capability
//   - StoreError: Wraps every backend failure with the failing operation
//
// # Implementations
//
//   - SQLStore: database/sql over SQLite or PostgreSQL
//   - MemoryStore: map-backed, for tests and the "memory" driver
//
// # Invariants
//
//   - Serial is unique and never changes once a record exists
//   - RegisteredAt is written once, at insert
//   - Updates touch only the columns named in Fields, so a location
//     report never clears an owner and an assignment never clears an IP
//
// # Usage
//
//	store := device.NewSQLStore(db.DB, db.Dialect())
//
//	rec, err := store.FindBySerial(ctx, "10000000abcdef01")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // first report from this unit
//	}
package device
