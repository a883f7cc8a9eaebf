package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLock_MutualExclusion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	first := NewLock(client, nil, "dispatch:c1", time.Minute)
	second := NewLock(client, nil, "dispatch:c1", time.Minute)

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v; want true", ok, err)
	}

	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire() error: %v", err)
	}
	if ok {
		t.Error("second Acquire() succeeded while lock held")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Errorf("Acquire() after release = %v, %v; want true", ok, err)
	}
}

func TestRedisLock_ReleaseRequiresOwnership(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	owner := NewLock(client, nil, "dispatch:c1", time.Minute)
	intruder := NewLock(client, nil, "dispatch:c1", time.Minute)

	if ok, _ := owner.Acquire(ctx); !ok {
		t.Fatal("owner could not acquire")
	}

	// Releasing a lock you don't hold must leave it in place.
	if err := intruder.Release(ctx); err != nil {
		t.Fatalf("intruder Release() error: %v", err)
	}
	if ok, _ := intruder.Acquire(ctx); ok {
		t.Error("lock was released by a non-owner")
	}
}

func TestAdvisoryLockFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("pg_advisory_unlock").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// nil Redis client selects the advisory-lock backend.
	lock := NewLock(nil, db, "dispatch:c1", time.Minute)

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v; want true", ok, err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdvisoryLock_StableKeyHash(t *testing.T) {
	a := newAdvisoryLock(nil, "dispatch:c1")
	b := newAdvisoryLock(nil, "dispatch:c1")
	c := newAdvisoryLock(nil, "dispatch:c2")

	if a.lockID != b.lockID {
		t.Error("same key must hash to the same lock id")
	}
	if a.lockID == c.lockID {
		t.Error("different keys should not collide")
	}
}
