// Package replay records decision cycles for post-match inspection: one
// zstd-compressed JSONL file per match plus a sqlite index of match
// summaries. Recording is write-only diagnostics; the engine never reads
// anything back from it.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"gridfire.ai/internal/engine"
)

// Recorder writes one match's cycle records. It implements engine.Recorder.
type Recorder struct {
	id    string
	round string
	path  string
	index *Index

	mu        sync.Mutex
	f         *os.File
	enc       *zstd.Encoder
	w         *bufio.Writer
	firstTick uint64
	lastTick  uint64
	score     int
	cycles    int
	started   time.Time
}

// NewRecorder opens <dir>/<match id>.jsonl.zst for a fresh match. The index
// may be nil; the JSONL file is then the only artifact.
func NewRecorder(dir, round string, index *Index) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	path := filepath.Join(dir, id+".jsonl.zst")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Recorder{
		id:      id,
		round:   round,
		path:    path,
		index:   index,
		f:       f,
		enc:     enc,
		w:       bufio.NewWriterSize(enc, 128*1024),
		started: time.Now().UTC(),
	}, nil
}

func (r *Recorder) ID() string   { return r.id }
func (r *Recorder) Path() string { return r.path }

// Record appends one cycle line and keeps the running match summary.
func (r *Recorder) Record(rec engine.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("recorder closed")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	if r.cycles == 0 {
		r.firstTick = rec.Tick
	}
	r.lastTick = rec.Tick
	r.score = rec.Score
	r.cycles++
	return r.w.Flush()
}

// Close flushes the stream and queues the match's index row.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	_ = r.w.Flush()
	err := r.enc.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.w, r.enc, r.f = nil, nil, nil
	r.index.Put(MatchRow{
		ID:         r.id,
		Round:      r.round,
		Path:       r.path,
		FirstTick:  r.firstTick,
		LastTick:   r.lastTick,
		FinalScore: r.score,
		Cycles:     r.cycles,
		RecordedAt: r.started.Format(time.RFC3339Nano),
	})
	return err
}
