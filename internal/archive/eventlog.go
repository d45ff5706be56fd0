// Package archive writes match history to disk: a compressed JSONL event log
// per match and parquet exports of battle results.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/dicewars/internal/match"
)

// Record is one line of an event log.
type Record struct {
	Seq   int             `json:"seq"`
	At    time.Time       `json:"at"`
	Kind  match.EventKind `json:"kind"`
	Event json.RawMessage `json:"event"`
}

// EventLog appends the events of one match to <dir>/<matchID>.jsonl.zst. It
// implements match.Observer, so it can be attached directly to a match.
// Reopening a log appends a new zstd frame; Seq restarts with each writer.
type EventLog struct {
	path string

	mu     sync.Mutex
	seq    int
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	closed bool
}

// LogPath returns where the event log of a match lives under dir.
func LogPath(dir, matchID string) string {
	return filepath.Join(dir, matchID+".jsonl.zst")
}

// NewEventLog opens the event log for a match, creating it if needed.
func NewEventLog(dir, matchID string) (*EventLog, error) {
	if matchID == "" {
		return nil, errors.New("empty match id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	path := LogPath(dir, matchID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &EventLog{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// Path returns the file the log writes to.
func (l *EventLog) Path() string { return l.path }

// Write appends one event.
func (l *EventLog) Write(e match.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Kind(), err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("event log closed")
	}
	rec := Record{Seq: l.seq, At: time.Now().UTC(), Kind: e.Kind(), Event: body}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(line); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	l.seq++
	return nil
}

// OnEvent writes the event, logging failures instead of returning them.
func (l *EventLog) OnEvent(e match.Event) {
	if err := l.Write(e); err != nil {
		log.Warn().Err(err).Str("matchId", e.MatchID()).Str("path", l.path).Msg("Event log write failed")
	}
}

// Len returns the number of events written.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Close flushes and closes the log. It is safe to call more than once.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	if err := l.w.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := l.enc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ReadEvents decodes every record of an event log file.
func ReadEvents(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	return decodeRecords(dec)
}

func decodeRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
