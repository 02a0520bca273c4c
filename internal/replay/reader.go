package replay

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"gridfire.ai/internal/engine"
)

// Reader iterates the cycle records of one recorded match file.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the following record, or io.EOF when the match is exhausted.
func (r *Reader) Next() (engine.CycleRecord, error) {
	var rec engine.CycleRecord
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return rec, err
		}
		return rec, io.EOF
	}
	if err := json.Unmarshal(r.sc.Bytes(), &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}
