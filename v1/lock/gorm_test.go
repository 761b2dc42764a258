package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	toolkiterrors "github.com/mirkobrombin/go-toolkit/v1/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGormStore(t *testing.T, opts ...GormOption) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := NewGormStore(db, opts...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestGormStoreSetNXAndCompareAndDelete(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()

	if ok, err := s.SetNX(ctx, "k", "a", time.Minute); err != nil || !ok {
		t.Fatalf("first SetNX: ok %v err %v", ok, err)
	}
	if ok, err := s.SetNX(ctx, "k", "b", time.Minute); err != nil || ok {
		t.Fatalf("second SetNX should fail, ok %v err %v", ok, err)
	}
	if ok, err := s.CompareAndDelete(ctx, "k", "b"); err != nil || ok {
		t.Fatalf("delete with wrong token, ok %v err %v", ok, err)
	}
	if ok, err := s.CompareAndDelete(ctx, "k", "a"); err != nil || !ok {
		t.Fatalf("delete with owner token, ok %v err %v", ok, err)
	}
	if ok, err := s.SetNX(ctx, "k", "b", time.Minute); err != nil || !ok {
		t.Fatalf("SetNX after release, ok %v err %v", ok, err)
	}
}

func TestGormStoreExpiredLeaseIsReplaced(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	if ok, err := s.SetNX(ctx, "k", "a", time.Second); err != nil || !ok {
		t.Fatalf("SetNX: ok %v err %v", ok, err)
	}
	now = now.Add(2 * time.Second)
	if ok, err := s.SetNX(ctx, "k", "b", time.Second); err != nil || !ok {
		t.Fatalf("expired lease should be replaced, ok %v err %v", ok, err)
	}
	if ok, _ := s.CompareAndDelete(ctx, "k", "a"); ok {
		t.Fatal("stale owner deleted the new lease")
	}
}

func TestGormStoreWithLocker(t *testing.T) {
	l := New(newGormStore(t))
	ctx := context.Background()
	ran, err := l.Do(ctx, "report", time.Minute, func(ctx context.Context) error {
		if _, err := l.Acquire(ctx, "report", time.Minute); err == nil {
			t.Error("nested acquire should see contention")
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("do: ran %v err %v", ran, err)
	}
}

func TestGormStoreOperationTimeout(t *testing.T) {
	s := newGormStore(t, WithGormTimeout(-time.Second))
	_, err := s.SetNX(context.Background(), "k", "a", time.Minute)
	if !errors.Is(err, toolkiterrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGormStoreCallerDeadlineIsNotATimeout(t *testing.T) {
	s := newGormStore(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := s.SetNX(ctx, "k", "a", time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, toolkiterrors.ErrTimeout) {
		t.Fatalf("expected the caller's deadline, got %v", err)
	}
	if _, err := s.CompareAndDelete(ctx, "k", "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the caller's deadline on delete, got %v", err)
	}

	_, err = New(s).Acquire(ctx, "k", time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStore) {
		t.Fatalf("expected a cancelled acquisition, got %v", err)
	}
}
