package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
)

func TestReconciliationCreate(t *testing.T) {
	var gotArgs []interface{}
	repo := NewReconciliationRepository(&fakeDB{execFn: func(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
		if !strings.Contains(query, "INSERT INTO subscription_reconciliations") {
			t.Fatalf("unexpected query: %s", query)
		}
		gotArgs = args
		return fakeResult{rowsAffected: 1}, nil
	}})

	marker := &entity.ReconciliationMarker{ID: "m-1", SubscriptionID: "s-1", Operation: entity.OperationCreate, CreatedAt: time.Now()}
	if err := repo.Create(context.Background(), marker); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotArgs[0] != "m-1" || gotArgs[1] != "s-1" || gotArgs[2] != "create" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestReconciliationDeletePropagatesError(t *testing.T) {
	repo := NewReconciliationRepository(&fakeDB{execFn: func(context.Context, string, ...interface{}) (sql.Result, error) {
		return nil, errors.New("db down")
	}})

	if err := repo.Delete(context.Background(), "m-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestReconciliationMarkReportedMissing(t *testing.T) {
	repo := NewReconciliationRepository(&fakeDB{execFn: func(context.Context, string, ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 0}, nil
	}})

	err := repo.MarkReported(context.Background(), "m-1", time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestReconciliationListUnreportedArgs(t *testing.T) {
	cutoff := time.Now().Add(-10 * time.Minute)
	repo := NewReconciliationRepository(&fakeDB{queryFn: func(_ context.Context, query string, args ...interface{}) (*sql.Rows, error) {
		if !strings.Contains(query, "reported_at IS NULL") {
			t.Fatalf("unexpected query: %s", query)
		}
		if args[0] != cutoff || args[1] != 50 {
			t.Fatalf("unexpected args: %#v", args)
		}
		return nil, errors.New("stop")
	}})

	if _, err := repo.ListUnreported(context.Background(), cutoff, 50); err == nil {
		t.Fatal("expected error")
	}
}
