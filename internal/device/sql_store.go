package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/database"
)

// timeLayout is a fixed-width RFC 3339 form so stored timestamps sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const recordColumns = "id, serial, user_id, email, ip_address, registered_at"

// SQLStore implements Store and Upserter over database/sql.
// Queries are written with ? placeholders and rebound for the dialect.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect

	findQuery   string
	insertQuery string
	listQuery   string
}

// NewSQLStore creates a store on an open connection.
// The devices table must exist (see database.DB.EnsureSchema).
func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		findQuery: dialect.Rebind(`
			SELECT ` + recordColumns + `
			FROM devices
			WHERE serial = ?`),
		insertQuery: dialect.Rebind(`
			INSERT INTO devices (` + recordColumns + `)
			VALUES (?, ?, ?, ?, ?, ?)`),
		listQuery: `
			SELECT ` + recordColumns + `
			FROM devices
			ORDER BY registered_at, serial`,
	}
}

// FindBySerial returns the record for serial.
func (s *SQLStore) FindBySerial(ctx context.Context, serial string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.findQuery, serial))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, &StoreError{Op: "find", Serial: serial, Err: err}
	}
	return rec, nil
}

// Insert creates a record, assigning ID and RegisteredAt when zero.
func (s *SQLStore) Insert(ctx context.Context, rec *Record) error {
	if rec.Serial == "" {
		return &StoreError{Op: "insert", Err: ErrInvalidRecord}
	}
	prepareInsert(rec)

	_, err := s.db.ExecContext(ctx, s.insertQuery, insertArgs(rec)...)
	if err != nil {
		if isUniqueViolation(err) {
			return &StoreError{Op: "insert", Serial: rec.Serial, Err: ErrDeviceExists}
		}
		return &StoreError{Op: "insert", Serial: rec.Serial, Err: err}
	}
	return nil
}

// UpdateFields writes the set members of fields onto the record for serial.
// An empty Fields only checks that the record exists.
func (s *SQLStore) UpdateFields(ctx context.Context, serial string, fields Fields) error {
	cols := fields.columns()
	if len(cols) == 0 {
		_, err := s.FindBySerial(ctx, serial)
		return err
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c.name+" = ?")
		args = append(args, nullableString(c.value))
	}
	args = append(args, serial)

	query := s.dialect.Rebind("UPDATE devices SET " + strings.Join(sets, ", ") + " WHERE serial = ?")

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &StoreError{Op: "update", Serial: serial, Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &StoreError{Op: "update", Serial: serial, Err: err}
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ListAll returns every record ordered by registration time, then serial.
func (s *SQLStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return records, nil
}

// Upsert inserts rec or, when its serial exists, writes fields onto the
// existing row, in a single statement. Both SQLite (3.35+) and PostgreSQL
// support ON CONFLICT ... RETURNING.
func (s *SQLStore) Upsert(ctx context.Context, rec *Record, fields Fields) (*Record, error) {
	if rec.Serial == "" {
		return nil, &StoreError{Op: "upsert", Err: ErrInvalidRecord}
	}
	prepareInsert(rec)

	sets := make([]string, 0, 3)
	for _, c := range fields.columns() {
		sets = append(sets, c.name+" = excluded."+c.name)
	}
	if len(sets) == 0 {
		// A no-op assignment still lets RETURNING yield the existing row.
		sets = append(sets, "serial = excluded.serial")
	}

	query := s.dialect.Rebind(`
		INSERT INTO devices (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (serial) DO UPDATE SET ` + strings.Join(sets, ", ") + `
		RETURNING ` + recordColumns)

	// The excluded row carries the update values, so they must be in the
	// insert arguments even when rec itself omits them.
	values := rec.Clone()
	fields.Apply(values)

	stored, err := scanRecord(s.db.QueryRowContext(ctx, query, insertArgs(values)...))
	if err != nil {
		return nil, &StoreError{Op: "upsert", Serial: rec.Serial, Err: err}
	}
	return stored, nil
}

// prepareInsert fills the generated columns.
func prepareInsert(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = time.Now()
	}
	rec.RegisteredAt = rec.RegisteredAt.UTC().Truncate(time.Microsecond)
}

func insertArgs(rec *Record) []any {
	return []any{
		rec.ID,
		rec.Serial,
		nullableString(rec.UserID),
		nullableString(rec.Email),
		nullableString(rec.IPAddress),
		rec.RegisteredAt.UTC().Format(timeLayout),
	}
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec                      Record
		userID, email, ipAddress sql.NullString
		registeredAt             string
	)

	if err := scanner.Scan(&rec.ID, &rec.Serial, &userID, &email, &ipAddress, &registeredAt); err != nil {
		return nil, err
	}

	if userID.Valid {
		rec.UserID = &userID.String
	}
	if email.Valid {
		rec.Email = &email.String
	}
	if ipAddress.Valid {
		rec.IPAddress = &ipAddress.String
	}

	t, err := time.Parse(time.RFC3339Nano, registeredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing registered_at %q: %w", registeredAt, err)
	}
	rec.RegisteredAt = t.UTC()

	return &rec, nil
}

// nullableString returns a sql.NullString for optional string pointers.
// Empty strings are stored as NULL.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isUniqueViolation reports whether err is a unique constraint failure
// from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
