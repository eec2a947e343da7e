package device

import "time"

// Record is the stored identity of one device.
type Record struct {
	// ID is a surrogate UUID assigned on insert.
	ID string `json:"id"`

	// Serial is the hardware serial number. Unique and immutable.
	Serial string `json:"serial"`

	// UserID and Email identify the owning account. Written only by assignment.
	UserID *string `json:"user_id"`
	Email  *string `json:"email"`

	// IPAddress is the last reported location. Overwritten, never cleared.
	IPAddress *string `json:"ip_address"`

	// RegisteredAt is when the record was created (UTC).
	RegisteredAt time.Time `json:"registered_at"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.UserID = cloneString(r.UserID)
	c.Email = cloneString(r.Email)
	c.IPAddress = cloneString(r.IPAddress)
	return &c
}

// Fields is a partial update. Nil members are left untouched, so a caller
// can only write the columns it names. These three are the only mutable
// columns of a record.
type Fields struct {
	UserID    *string
	Email     *string
	IPAddress *string
}

// IsEmpty reports whether no column would be written.
func (f Fields) IsEmpty() bool {
	return f.UserID == nil && f.Email == nil && f.IPAddress == nil
}

// Apply copies the set members onto r.
func (f Fields) Apply(r *Record) {
	if f.UserID != nil {
		r.UserID = cloneString(f.UserID)
	}
	if f.Email != nil {
		r.Email = cloneString(f.Email)
	}
	if f.IPAddress != nil {
		r.IPAddress = cloneString(f.IPAddress)
	}
}

// column is one whitelisted assignment in an UPDATE.
type column struct {
	name  string
	value *string
}

// columns lists the set members in a fixed order.
func (f Fields) columns() []column {
	var cols []column
	if f.UserID != nil {
		cols = append(cols, column{"user_id", f.UserID})
	}
	if f.Email != nil {
		cols = append(cols, column{"email", f.Email})
	}
	if f.IPAddress != nil {
		cols = append(cols, column{"ip_address", f.IPAddress})
	}
	return cols
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *s, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
