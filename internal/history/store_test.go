package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/droverlabs/drover/internal/marker"
)

func sampleEntry(t *testing.T, prompt string) Entry {
	t.Helper()
	e := NewEntry(ConfigSnapshot{MaxIterations: 3, Model: "sonnet"}, prompt, "/work")
	e = e.WithIteration(IterationRecord{
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
		Duration:  time.Minute,
		Output:    "did some work\n<<<LOOP_COMPLETE>>>",
		Signal:    marker.Signal{Kind: marker.Complete, Raw: "<<<LOOP_COMPLETE>>>"},
	})
	return e.Finalized(ResultCompleted, time.Minute)
}

func TestStoreSaveLoad(t *testing.T) {
	t.Run("round trip by id", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "runs"))
		e := sampleEntry(t, "prompt text")

		if err := store.Save(e); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := store.Load(e.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.ID != e.ID || got.Prompt != "prompt text" {
			t.Errorf("loaded entry mismatch: %+v", got)
		}
		if len(got.Iterations) != 1 || got.Iterations[0].Signal.Kind != marker.Complete {
			t.Errorf("iterations not preserved: %+v", got.Iterations)
		}
		if got.Result != ResultCompleted {
			t.Errorf("result = %q", got.Result)
		}
	})

	t.Run("directory is created lazily", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "runs")
		store := NewStore(dir)
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatal("directory must not exist before first save")
		}
		if err := store.Save(sampleEntry(t, "p")); err != nil {
			t.Fatalf("save: %v", err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory missing after save: %v", err)
		}
	})

	t.Run("filename carries creation date and id", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir)
		e := sampleEntry(t, "p")
		if err := store.Save(e); err != nil {
			t.Fatalf("save: %v", err)
		}
		want := e.StartedAt.Format("20060102") + "-" + e.ID + ".json"
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("expected file %s: %v", want, err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if _, err := store.Load("nope"); err == nil {
			t.Error("expected error for unknown id")
		} else if !strings.Contains(err.Error(), "nope") {
			t.Errorf("error should name the id: %v", err)
		}
	})
}

func TestStoreList(t *testing.T) {
	t.Run("sorted by start time descending with cap", func(t *testing.T) {
		store := NewStore(t.TempDir())

		base := time.Now()
		for i := 0; i < 3; i++ {
			e := sampleEntry(t, "p")
			e.StartedAt = base.Add(time.Duration(i) * time.Hour)
			if err := store.Save(e); err != nil {
				t.Fatalf("save: %v", err)
			}
		}

		all, err := store.List(0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].StartedAt.After(all[i-1].StartedAt) {
				t.Error("rows not sorted by start time descending")
			}
		}

		capped, err := store.List(2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(capped) != 2 {
			t.Errorf("expected 2 rows with limit, got %d", len(capped))
		}
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "never-created"))
		rows, err := store.List(10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("expected no rows, got %d", len(rows))
		}
	})

	t.Run("save upserts the index row by id", func(t *testing.T) {
		store := NewStore(t.TempDir())
		e := NewEntry(ConfigSnapshot{}, "p", "/work")

		if err := store.Save(e); err != nil {
			t.Fatalf("save running: %v", err)
		}
		final := e.WithIteration(IterationRecord{Output: "x"}).Finalized(ResultCompleted, time.Second)
		if err := store.Save(final); err != nil {
			t.Fatalf("save final: %v", err)
		}

		rows, err := store.List(0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("expected 1 row after upsert, got %d", len(rows))
		}
		if rows[0].Result != ResultCompleted || rows[0].Iterations != 1 {
			t.Errorf("row not updated: %+v", rows[0])
		}
	})
}

func TestEnforceRetention(t *testing.T) {
	t.Run("keeps newest files and the index", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir)

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			e := sampleEntry(t, "p")
			e.StartedAt = base.AddDate(0, 0, i)
			if err := store.Save(e); err != nil {
				t.Fatalf("save: %v", err)
			}
		}

		if err := EnforceRetention(dir, 2); err != nil {
			t.Fatalf("retention: %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		var runs int
		var hasIndex bool
		for _, de := range entries {
			if de.Name() == indexFileName {
				hasIndex = true
				continue
			}
			runs++
		}
		if runs != 2 {
			t.Errorf("expected 2 run files after retention, got %d", runs)
		}
		if !hasIndex {
			t.Error("retention must not delete the index")
		}
	})

	t.Run("zero disables retention", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir)
		for i := 0; i < 3; i++ {
			if err := store.Save(sampleEntry(t, "p")); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		if err := EnforceRetention(dir, 0); err != nil {
			t.Fatalf("retention: %v", err)
		}
		rows, _ := NewStore(dir).List(0)
		if len(rows) != 3 {
			t.Errorf("files were deleted with retention disabled")
		}
	})

	t.Run("missing directory is fine", func(t *testing.T) {
		if err := EnforceRetention(filepath.Join(t.TempDir(), "absent"), 5); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
