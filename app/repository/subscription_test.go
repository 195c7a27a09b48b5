package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
)

type fakeDB struct {
	execFn  func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	queryFn func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if f.execFn != nil {
		return f.execFn(ctx, query, args...)
	}
	return fakeResult{rowsAffected: 1}, nil
}

func (f *fakeDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, query, args...)
	}
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

type fakeResult struct {
	lastInsertID int64
	rowsAffected int64
	lastErr      error
	rowsErr      error
}

func (r fakeResult) LastInsertId() (int64, error) {
	return r.lastInsertID, r.lastErr
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.rowsAffected, r.rowsErr
}

func TestCreatePassesAllColumns(t *testing.T) {
	var gotArgs []interface{}
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
		if !strings.Contains(query, "INSERT INTO api_subscriptions") {
			t.Fatalf("unexpected query: %s", query)
		}
		gotArgs = args
		return fakeResult{rowsAffected: 1}, nil
	}})

	now := time.Now().UTC()
	s := &entity.APISubscription{
		ID:             "0b6c5e1e-5d7f-4a43-9f0d-7f2d6a3f1c11",
		ProductName:    "vision",
		DeploymentName: "basic",
		OwnerID:        "alice",
		Status:         lifecycle.StatusPendingFulfillmentStart,
		PrimaryKey:     "p1",
		SecondaryKey:   "s1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(gotArgs) != 11 {
		t.Fatalf("expected 11 args, got %d", len(gotArgs))
	}
	if gotArgs[0] != s.ID || gotArgs[5] != "PendingFulfillmentStart" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestCreateMapsDuplicate(t *testing.T) {
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return nil, &mysqlDriver.MySQLError{Number: 1062, Message: "duplicate"}
	}})

	err := repo.Create(context.Background(), &entity.APISubscription{ID: "x"})
	if !errors.Is(err, ErrSubscriptionAlreadyExists) {
		t.Fatalf("expected ErrSubscriptionAlreadyExists, got %v", err)
	}
}

func TestUpdateNoRowsAffected(t *testing.T) {
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 0}, nil
	}})

	err := repo.Update(context.Background(), &entity.APISubscription{ID: "x"})
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestUpdateNeverWritesImmutableColumns(t *testing.T) {
	repo := NewSubscriptionRepository(&fakeDB{execFn: func(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
		if strings.Contains(query, "product_name") || strings.Contains(query, "owner_id") {
			t.Fatalf("update must not touch product or owner: %s", query)
		}
		if args[len(args)-1] != "x" {
			t.Fatalf("expected id as last arg, got %#v", args)
		}
		return fakeResult{rowsAffected: 1}, nil
	}})

	if err := repo.Update(context.Background(), &entity.APISubscription{ID: "x"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestListBuildsFilters(t *testing.T) {
	var gotQuery string
	var gotArgs []interface{}
	repo := NewSubscriptionRepository(&fakeDB{queryFn: func(_ context.Context, query string, args ...interface{}) (*sql.Rows, error) {
		gotQuery = query
		gotArgs = args
		return nil, errors.New("stop")
	}})

	_, err := repo.List(context.Background(), " alice ", lifecycle.DefaultDeletedFilter())
	if err == nil {
		t.Fatal("expected query error")
	}
	if !strings.Contains(gotQuery, "LOWER(owner_id) = LOWER(?)") || !strings.Contains(gotQuery, "status IN (?, ?)") {
		t.Fatalf("unexpected query: %s", gotQuery)
	}
	if len(gotArgs) != 3 || gotArgs[0] != "alice" || gotArgs[1] != "Unsubscribed" || gotArgs[2] != "Purged" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestListWithoutFilters(t *testing.T) {
	var gotQuery string
	repo := NewSubscriptionRepository(&fakeDB{queryFn: func(_ context.Context, query string, _ ...interface{}) (*sql.Rows, error) {
		gotQuery = query
		return nil, errors.New("stop")
	}})

	_, _ = repo.List(context.Background(), "", nil)
	if strings.Contains(gotQuery, "WHERE") {
		t.Fatalf("expected no WHERE clause: %s", gotQuery)
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	if !isDuplicateEntryError(&mysqlDriver.MySQLError{Number: 1062}) {
		t.Fatal("expected true for mysql duplicate error")
	}
	if isDuplicateEntryError(errors.New("boom")) {
		t.Fatal("expected false for generic error")
	}
}

func TestPlaceholders(t *testing.T) {
	if placeholders(0) != "" {
		t.Fatal("expected empty placeholders")
	}
	if got := placeholders(3); got != "?, ?, ?" {
		t.Fatalf("unexpected placeholders: %q", got)
	}
}

type fakeRowScanner struct {
	values []interface{}
	err    error
}

func (f fakeRowScanner) Scan(dest ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	for i, value := range f.values {
		switch d := dest[i].(type) {
		case *string:
			*d = value.(string)
		case *time.Time:
			*d = value.(time.Time)
		}
	}
	return nil
}

func TestScanSubscription(t *testing.T) {
	now := time.Now().UTC()

	item := &entity.APISubscription{}
	err := scanSubscription(fakeRowScanner{values: []interface{}{
		"id-1", "Team", "vision", "basic", "alice", "Suspended", "p1", "s1", `"etag"`, now, now,
	}}, item)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if item.ID != "id-1" || item.OwnerID != "alice" || item.Status != lifecycle.StatusSuspended {
		t.Fatalf("unexpected scan result: %+v", item)
	}
	if item.GatewayETag != `"etag"` || !item.CreatedAt.Equal(now) {
		t.Fatalf("unexpected scan result: %+v", item)
	}
}

func TestScanSubscriptionError(t *testing.T) {
	err := scanSubscription(fakeRowScanner{err: sql.ErrNoRows}, &entity.APISubscription{})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
