package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestScopeNestedEntryCommitsOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	before := store.Commits()

	sc := store.Scope()
	err := sc.Do(ctx, func(tx *gorm.DB) error {
		if sc.Depth() != 1 {
			t.Fatalf("expected depth 1, got %d", sc.Depth())
		}
		if _, found, err := sc.Lookup(ctx, "s3://bucket/nested"); err != nil || found {
			t.Fatalf("expected miss inside scope, found=%v err=%v", found, err)
		}
		if err := sc.Insert(ctx, "s3://bucket/nested", "/tmp/nested"); err != nil {
			return err
		}
		got, found, err := sc.Lookup(ctx, "s3://bucket/nested")
		if err != nil || !found || got != "/tmp/nested" {
			t.Fatalf("expected uncommitted write to be visible in scope, got %q found=%v err=%v", got, found, err)
		}
		if store.Commits() != before {
			t.Fatalf("inner exits must not commit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scope error: %v", err)
	}

	if sc.Depth() != 0 {
		t.Fatalf("expected depth 0 after outer exit, got %d", sc.Depth())
	}
	if got := store.Commits() - before; got != 1 {
		t.Fatalf("expected exactly one commit, got %d", got)
	}
	if _, found := lookupWithin(t, store, "s3://bucket/nested", time.Second); !found {
		t.Fatalf("expected entry to be committed")
	}
}

func TestScopeManualEnterExit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sc := store.Scope()
	if _, err := sc.Enter(ctx); err != nil {
		t.Fatalf("enter error: %v", err)
	}
	if _, err := sc.Enter(ctx); err != nil {
		t.Fatalf("reentrant enter error: %v", err)
	}
	if sc.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", sc.Depth())
	}
	if err := sc.Exit(); err != nil {
		t.Fatalf("inner exit error: %v", err)
	}
	if err := sc.Exit(); err != nil {
		t.Fatalf("outer exit error: %v", err)
	}
	if err := sc.Exit(); !errors.Is(err, ErrScopeNotEntered) {
		t.Fatalf("expected ErrScopeNotEntered, got %v", err)
	}
}

func TestScopeReleasesLockOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	sc := store.Scope()
	err := sc.Do(ctx, func(tx *gorm.DB) error {
		if err := sc.Insert(ctx, "s3://bucket/rolled-back", "/tmp/rolled-back"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if sc.Depth() != 0 {
		t.Fatalf("expected depth 0 after failure, got %d", sc.Depth())
	}

	if _, found := lookupWithin(t, store, "s3://bucket/rolled-back", time.Second); found {
		t.Fatalf("failed scope must roll back pending writes")
	}
}

func TestScopeReleasesLockOnPanic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sc := store.Scope()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = sc.Do(ctx, func(tx *gorm.DB) error {
			_ = sc.Do(ctx, func(tx *gorm.DB) error {
				panic("inner failure")
			})
			return nil
		})
	}()

	if sc.Depth() != 0 {
		t.Fatalf("expected depth 0 after panic, got %d", sc.Depth())
	}
	lookupWithin(t, store, "s3://bucket/any", time.Second)
}

func TestScopeSerializesIndependentCallers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	holder := store.Scope()
	if _, err := holder.Enter(ctx); err != nil {
		t.Fatalf("enter error: %v", err)
	}
	if err := holder.Insert(ctx, "s3://bucket/serial", "/tmp/serial"); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	done := make(chan bool, 1)
	go func() {
		_, found, _ := store.Lookup(ctx, "s3://bucket/serial")
		done <- found
	}()

	select {
	case <-done:
		t.Fatalf("independent caller must wait for the outer scope to exit")
	case <-time.After(100 * time.Millisecond):
	}

	if err := holder.Exit(); err != nil {
		t.Fatalf("exit error: %v", err)
	}

	select {
	case found := <-done:
		if !found {
			t.Fatalf("waiting caller should observe the committed entry")
		}
	case <-time.After(time.Second):
		t.Fatalf("waiting caller never acquired the lock")
	}
}

func TestScopeEnterAfterCancelReleasesLock(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := store.Scope()
	if _, _, err := sc.Lookup(ctx, "s3://bucket/cancelled"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if sc.Depth() != 0 {
		t.Fatalf("expected depth 0, got %d", sc.Depth())
	}
	lookupWithin(t, store, "s3://bucket/cancelled", time.Second)
}
