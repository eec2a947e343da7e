// Package fleet reconciles device self-reports into the device store and
// answers fleet queries.
//
// A self-report may omit the serial or the IP address; the Reconciler
// fills them from the local IdentityResolver and LocationResolver before
// writing. Writes are field-scoped: RegisterDevice only ever writes
// ip_address and AssignUser only ever writes user_id and email, so the
// two kinds of report never clobber each other.
//
// When the store implements device.Upserter the write is a single atomic
// insert-or-update keyed on serial. Otherwise the Reconciler looks the
// serial up and inserts or updates; an insert that loses a race to a
// concurrent first report is retried once as an update.
//
// Every successful write emits an Event to the configured EventSink
// (MQTT, InfluxDB, WebSocket, audit trail). Sink failures are logged and never fail
// the operation.
package fleet
