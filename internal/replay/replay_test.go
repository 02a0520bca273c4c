package replay

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"gridfire.ai/internal/engine"
)

func cycleRecord(tick uint64, score int) engine.CycleRecord {
	return engine.CycleRecord{
		Tick:  tick,
		Score: score,
		Alive: 4,
		Commands: []engine.CommandRecord{
			{UnitID: "u1", Path: [][2]int{{3, 4}, {3, 5}}, Bombs: [][2]int{{3, 5}}},
		},
		Verdicts: []engine.VerdictRecord{
			{UnitID: "u1", Accepted: true},
		},
	}
}

func TestRecorder_RoundTripWithIndex(t *testing.T) {
	dir := t.TempDir()
	ix, err := OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}

	rec, err := NewRecorder(dir, "round-9", ix)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := rec.Record(cycleRecord(uint64(5+i), 10*(i+1))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close recorder: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	r, err := OpenReader(rec.Path())
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()
	for i := 0; i < 3; i++ {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if got.Tick != uint64(5+i) || got.Score != 10*(i+1) {
			t.Fatalf("record %d = %+v", i, got)
		}
		if len(got.Commands) != 1 || got.Commands[0].UnitID != "u1" || got.Commands[0].Bombs[0] != [2]int{3, 5} {
			t.Fatalf("record %d commands = %+v", i, got.Commands)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want io.EOF after last record", err)
	}

	// The summary row survives reopening the index.
	ix2, err := OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	defer ix2.Close()
	rows, err := ix2.Matches(context.Background(), 10)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%+v want one match", rows)
	}
	row := rows[0]
	if row.ID != rec.ID() || row.Round != "round-9" || row.Path != rec.Path() {
		t.Fatalf("row=%+v", row)
	}
	if row.FirstTick != 5 || row.LastTick != 7 || row.FinalScore != 30 || row.Cycles != 3 {
		t.Fatalf("summary=%+v", row)
	}
}

func TestRecorder_NilIndexStillWrites(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, "", nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if err := rec.Record(cycleRecord(1, 0)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(rec.Path())
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()
	if got, err := r.Next(); err != nil || got.Tick != 1 {
		t.Fatalf("next=%+v err=%v", got, err)
	}
}

func TestIndex_MatchLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ix.Put(MatchRow{ID: "m1", Round: "r1", Path: "a.jsonl.zst", RecordedAt: "2026-08-24T10:00:00Z"})
	ix.Put(MatchRow{ID: "m2", Round: "r2", Path: "b.jsonl.zst", FinalScore: 120, RecordedAt: "2026-08-24T11:00:00Z"})
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ix2, err := OpenIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ix2.Close()

	row, err := ix2.Match(context.Background(), "m2")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if row.Round != "r2" || row.FinalScore != 120 {
		t.Fatalf("row=%+v", row)
	}
	if _, err := ix2.Match(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown match id")
	}

	rows, err := ix2.Matches(context.Background(), 0)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "m2" {
		t.Fatalf("rows=%+v want m2 first (newest)", rows)
	}
}

func TestOpenReader_MissingFile(t *testing.T) {
	if _, err := OpenReader(filepath.Join(t.TempDir(), "absent.jsonl.zst")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
