package store

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/svcdeps/svcdeps/internal/fact"
)

// testLogger discards store logging in tests
func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// openTestStore opens a store in a temporary directory
func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpen_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	st, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}

	var count int
	err = st.conn.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='service_dependencies'`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Errorf("service_dependencies table does not exist")
	}
}

func TestOpen_Unavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}

	_, err := Open(filepath.Join(blocker, "test.db"), testLogger())
	if err == nil {
		t.Fatal("Open() should fail when the parent path is a file")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Open() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	st, err := Open(MemoryPath, testLogger())
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.InsertFactIfAbsent(ctx, fact.New("a", "b", "1")); err != nil {
		t.Fatalf("InsertFactIfAbsent() failed: %v", err)
	}
	facts, err := st.LoadAllFacts(ctx)
	if err != nil {
		t.Fatalf("LoadAllFacts() failed: %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("len(facts) = %d, want 1", len(facts))
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.InitSchemaContext(ctx); err != nil {
		t.Errorf("Second InitSchemaContext() failed: %v", err)
	}
}

func TestInsertFactIfAbsent_Idempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	f := fact.New("service-c", "service-a", "1.0.0")

	for i := 0; i < 5; i++ {
		added, err := st.InsertFactIfAbsent(ctx, f)
		if err != nil {
			t.Fatalf("InsertFactIfAbsent() #%d failed: %v", i, err)
		}
		if want := i == 0; added != want {
			t.Errorf("InsertFactIfAbsent() #%d added = %v, want %v", i, added, want)
		}
	}

	count, err := st.FactCount(ctx)
	if err != nil {
		t.Fatalf("FactCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("FactCount() = %d, want 1", count)
	}
}

func TestInsertFactIfAbsent_VersionIsPartOfKey(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.1.0"} {
		if _, err := st.InsertFactIfAbsent(ctx, fact.New("svc", "lib", v)); err != nil {
			t.Fatalf("InsertFactIfAbsent(%s) failed: %v", v, err)
		}
	}

	count, err := st.FactCount(ctx)
	if err != nil {
		t.Fatalf("FactCount() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("FactCount() = %d, want 2", count)
	}
}

func TestInsertFactIfAbsent_Invalid(t *testing.T) {
	st := openTestStore(t)

	_, err := st.InsertFactIfAbsent(context.Background(), fact.New("", "lib", "1"))
	if err == nil {
		t.Fatal("InsertFactIfAbsent() should reject an empty service")
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("validation error should not be ErrStoreUnavailable: %v", err)
	}
}

func TestInsertFacts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	facts := []fact.Fact{
		fact.New("A", "X", "1.0"),
		fact.New("B", "X", "1.0"),
		fact.New("A", "X", "1.0"),
	}

	n, err := st.InsertFacts(ctx, facts)
	if err != nil {
		t.Fatalf("InsertFacts() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("InsertFacts() inserted = %d, want 2", n)
	}

	n, err = st.InsertFacts(ctx, facts)
	if err != nil {
		t.Fatalf("second InsertFacts() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second InsertFacts() inserted = %d, want 0", n)
	}
}

func TestInsertFacts_RejectsInvalidBatch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.InsertFacts(ctx, []fact.Fact{
		fact.New("A", "X", "1.0"),
		fact.New("A", "", "1.0"),
	})
	if err == nil {
		t.Fatal("InsertFacts() should reject a batch with an invalid fact")
	}

	count, err := st.FactCount(ctx)
	if err != nil {
		t.Fatalf("FactCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("FactCount() = %d, want 0 after rejected batch", count)
	}
}

func TestLoadAllFacts_InsertionOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	empty, err := st.LoadAllFacts(ctx)
	if err != nil {
		t.Fatalf("LoadAllFacts() on empty store failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("LoadAllFacts() = %#v, want empty non-nil slice", empty)
	}

	want := []fact.Fact{
		fact.New("zeta", "core", "2.0"),
		fact.New("alpha", "core", "1.0"),
		fact.New("mid", "alpha", "0.1"),
	}
	for _, f := range want {
		if _, err := st.InsertFactIfAbsent(ctx, f); err != nil {
			t.Fatalf("InsertFactIfAbsent() failed: %v", err)
		}
	}
	// A repeat must not move the original row.
	if _, err := st.InsertFactIfAbsent(ctx, want[0]); err != nil {
		t.Fatalf("InsertFactIfAbsent() failed: %v", err)
	}

	got, err := st.LoadAllFacts(ctx)
	if err != nil {
		t.Fatalf("LoadAllFacts() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadAllFacts() = %v, want %v", got, want)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := st.InsertFacts(ctx, []fact.Fact{fact.New("a", "b", "1"), fact.New("c", "b", "1")}); err != nil {
		t.Fatalf("InsertFacts() failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	st, err = Open(path, testLogger())
	if err != nil {
		t.Fatalf("re-Open() failed: %v", err)
	}
	defer st.Close()

	facts, err := st.FactCount(ctx)
	if err != nil {
		t.Fatalf("FactCount() failed: %v", err)
	}
	services, err := st.ServiceCount(ctx)
	if err != nil {
		t.Fatalf("ServiceCount() failed: %v", err)
	}
	if facts != 2 || services != 2 {
		t.Errorf("counts = (%d facts, %d services), want (2, 2)", facts, services)
	}
}

func TestClose_Twice(t *testing.T) {
	st := openTestStore(t)
	if err := st.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestStore_AfterClose(t *testing.T) {
	for _, path := range []string{filepath.Join(t.TempDir(), "test.db"), MemoryPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			st, err := Open(path, testLogger())
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close() failed: %v", err)
			}

			ctx := context.Background()
			f := fact.New("service-c", "service-a", "1.0.0")

			if _, err := st.LoadAllFacts(ctx); !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("LoadAllFacts() error = %v, want ErrStoreUnavailable", err)
			}
			if _, err := st.InsertFactIfAbsent(ctx, f); !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("InsertFactIfAbsent() error = %v, want ErrStoreUnavailable", err)
			}
			if _, err := st.InsertFacts(ctx, []fact.Fact{f}); !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("InsertFacts() error = %v, want ErrStoreUnavailable", err)
			}
			if _, err := st.FactCount(ctx); !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("FactCount() error = %v, want ErrStoreUnavailable", err)
			}
			if _, err := st.ServiceCount(ctx); !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("ServiceCount() error = %v, want ErrStoreUnavailable", err)
			}
			if err := st.InitSchemaContext(ctx); !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("InitSchemaContext() error = %v, want ErrStoreUnavailable", err)
			}
		})
	}
}
