package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/nerrad567/gray-logic-fleet/internal/audit"
	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/database"
)

// auditServer wires an in-memory SQLite audit trail into a test server.
func auditServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	repo := audit.NewSQLRepository(db.DB, db.Dialect())
	srv, _ := testServer(t)
	srv.audit = repo
	srv.reconciler.SetEventSink(fleet.MultiSink{srv.Hub(), audit.NewSink(repo)})
	return srv
}

func TestAudit_NotRoutedWithoutRepository(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, http.MethodGet, "/audit", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAudit_RecordsReconciliations(t *testing.T) {
	srv := auditServer(t)

	for _, body := range []string{
		`{"serial":"PI-A","ip_address":"10.0.0.1"}`,
		`{"serial":"PI-A","ip_address":"10.0.0.2"}`,
		`{"serial":"PI-B"}`,
	} {
		if w := serve(srv, http.MethodPost, "/register-device", body); w.Code != http.StatusOK {
			t.Fatalf("register %s: status %d", body, w.Code)
		}
	}
	if w := serve(srv, http.MethodPost, "/assign-user", `{"serial":"PI-A","user_id":"u1","email":"u1@example.com"}`); w.Code != http.StatusOK {
		t.Fatalf("assign: status %d", w.Code)
	}

	w := serve(srv, http.MethodGet, "/audit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	all := decodeBody[audit.ListResult](t, w)
	if all.Total != 4 {
		t.Errorf("Total = %d, want 4", all.Total)
	}
	for _, l := range all.Logs {
		if l.Source != fleet.SourceHTTP {
			t.Errorf("log %s source = %q, want %q", l.ID, l.Source, fleet.SourceHTTP)
		}
	}

	w = serve(srv, http.MethodGet, "/audit?serial=PI-A&action=heartbeat", "")
	got := decodeBody[audit.ListResult](t, w)
	if got.Total != 1 || len(got.Logs) != 1 {
		t.Fatalf("filtered = %+v, want one heartbeat", got)
	}
	if ip := got.Logs[0].Details["ip_address"]; ip != "10.0.0.2" {
		t.Errorf("heartbeat ip_address = %v, want 10.0.0.2", ip)
	}

	w = serve(srv, http.MethodGet, "/audit?limit=1&offset=1", "")
	paged := decodeBody[audit.ListResult](t, w)
	if len(paged.Logs) != 1 || paged.Limit != 1 || paged.Offset != 1 {
		t.Errorf("paged = %+v", paged)
	}
}

func TestAudit_BadQuery(t *testing.T) {
	srv := auditServer(t)

	for _, target := range []string{"/audit?limit=ten", "/audit?offset=x"} {
		w := serve(srv, http.MethodGet, target, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, w.Code, http.StatusBadRequest)
		}
		if e := decodeBody[Error](t, w); e.Code != ErrCodeBadRequest {
			t.Errorf("%s: code = %q, want %q", target, e.Code, ErrCodeBadRequest)
		}
	}
}

type brokenAudit struct{ audit.Repository }

func (brokenAudit) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return nil, errors.New("no such table: audit_logs")
}

func TestAudit_RepositoryFailure(t *testing.T) {
	srv, _ := testServer(t)
	srv.audit = brokenAudit{}

	w := serve(srv, http.MethodGet, "/audit", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
