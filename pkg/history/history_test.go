package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func sampleRun(id string, at time.Time) Run {
	return Run{
		ID:          id,
		StartedAt:   at,
		MapPath:     "maps/small.txt",
		MapHash:     "abc123",
		Width:       4,
		Height:      4,
		MachineRate: 5,
		BeltRate:    5,
		OreCounting: "footprint",
		Status:      "optimal",
		Objective:   40,
		Machines:    1,
		Belts:       8,
		Nodes:       17,
		Duration:    1500 * time.Millisecond,
	}
}

func TestRecordAndGet(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	want := sampleRun("run-1", at)
	want.CacheHit = true
	if err := s.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, ok, err := s.Get(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !got.StartedAt.Equal(at) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, at)
	}
	got.StartedAt = want.StartedAt
	if got != want {
		t.Errorf("Get() = %+v\nwant %+v", got, want)
	}

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Get(missing) ok=%v err=%v", ok, err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("List(0) order = %v", ids(all))
	}

	two, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(two) != 2 || two[0].ID != "c" || two[1].ID != "b" {
		t.Errorf("List(2) = %v", ids(two))
	}
}

func TestRecordReplaces(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	r := sampleRun("x", time.Now())
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Status = "timeout"
	r.Error = "deadline exceeded"
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}
	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Status != "timeout" || all[0].Error != "deadline exceeded" {
		t.Errorf("List() = %+v", all)
	}
}

func TestPrune(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"old", "new"} {
		if err := s.Record(ctx, sampleRun(id, now.Add(time.Duration(i-1)*48*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d rows, want 1", n)
	}
	if _, ok, _ := s.Get(ctx, "old"); ok {
		t.Error("old run survived Prune")
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	s, path := openTemp(t)
	if err := s.Record(context.Background(), sampleRun("kept", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var id, status string
	var objective float64
	if err := db.QueryRow(`SELECT id, status, objective FROM runs`).Scan(&id, &status, &objective); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if id != "kept" || status != "optimal" || objective != 40 {
		t.Errorf("row = %s %s %v", id, status, objective)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

func ids(rs []Run) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
