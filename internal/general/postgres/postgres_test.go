package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/domain/user"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeDB struct {
	row      fakeRow
	lastSQL  string
	lastArgs []any
	execErr  error
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.lastSQL, db.lastArgs = sql, args
	return pgconn.NewCommandTag("UPDATE 1"), db.execErr
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.lastSQL, db.lastArgs = sql, args
	return db.row
}

func TestGetIdentity(t *testing.T) {
	tests := []struct {
		name       string
		row        fakeRow
		wantNil    bool
		wantErr    bool
		canConnect bool
	}{
		{name: "active driver", row: fakeRow{values: []any{"u1", "Abebe", "DRIVER", "ACTIVE"}}, canConnect: true},
		{name: "suspended", row: fakeRow{values: []any{"u1", "Abebe", "DRIVER", "SUSPENDED"}}},
		{name: "inactive", row: fakeRow{values: []any{"u1", "Abebe", "ADMIN", "INACTIVE"}}},
		{name: "unknown role", row: fakeRow{values: []any{"u1", "Abebe", "PILOT", "ACTIVE"}}},
		{name: "not found", row: fakeRow{err: pgx.ErrNoRows}, wantNil: true},
		{name: "db error", row: fakeRow{err: errors.New("conn reset")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewIdentityRepo(&fakeDB{row: tt.row})
			got, err := repo.GetIdentity(context.Background(), "u1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil identity, got %+v", got)
				}
				return
			}
			if got.CanConnect() != tt.canConnect {
				t.Errorf("CanConnect = %v, want %v (%+v)", got.CanConnect(), tt.canConnect, got)
			}
		})
	}
}

func TestLookupProfile(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{"drv-9"}}}
	repo := NewIdentityRepo(db)

	id, err := repo.LookupProfile(context.Background(), "u1", user.RoleDriver)
	if err != nil || id != "drv-9" {
		t.Fatalf("got %q, %v", id, err)
	}
	if !strings.Contains(db.lastSQL, "FROM drivers") {
		t.Errorf("driver lookup should query drivers: %s", db.lastSQL)
	}

	_, _ = repo.LookupProfile(context.Background(), "u1", user.RoleCustomer)
	if !strings.Contains(db.lastSQL, "FROM customers") {
		t.Errorf("customer lookup should query customers: %s", db.lastSQL)
	}

	db.lastSQL = ""
	if id, err := repo.LookupProfile(context.Background(), "u1", user.RoleAdmin); id != "" || err != nil || db.lastSQL != "" {
		t.Errorf("admins have no profile and need no query: %q %v", id, err)
	}

	db.row = fakeRow{err: pgx.ErrNoRows}
	if id, err := repo.LookupProfile(context.Background(), "u1", user.RoleDriver); id != "" || err != nil {
		t.Errorf("missing profile should be empty, got %q %v", id, err)
	}
}

func TestSaveLastLocationGuardsAgainstOlderWrites(t *testing.T) {
	db := &fakeDB{}
	repo := NewDriverRepo(db)

	ts := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	rec := tracking.LocationRecord{DriverID: "d1", Latitude: 1.5, Longitude: 2.5, IsOnDuty: true, Timestamp: ts}
	if err := repo.SaveLastLocation(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(db.lastSQL, "last_location_update <= $5") {
		t.Errorf("update must not regress the timestamp: %s", db.lastSQL)
	}
	if len(db.lastArgs) != 5 || db.lastArgs[0] != "d1" || db.lastArgs[4] != ts {
		t.Errorf("unexpected args %v", db.lastArgs)
	}

	db.execErr = errors.New("deadlock")
	if err := repo.SetDuty(context.Background(), "d1", false); err == nil {
		t.Error("exec errors should propagate")
	}
}

func TestDriverSnapshotsPropagatesQueryError(t *testing.T) {
	repo := NewDriverRepo(&fakeDB{})
	if _, err := repo.DriverSnapshots(context.Background()); err == nil {
		t.Error("expected error")
	}
}
