// Package report archives solve runs as snappy-framed JSON snapshots: the
// network in its editor form, the outcome (pre-report, attempts, result)
// and, for failed runs, the aggregate failure text.
package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/snappy"

	"github.com/katalvlaran/hydronet/network"
	"github.com/katalvlaran/hydronet/solve"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Sentinel errors.
var (
	ErrNilSnapshot = errors.New("report: snapshot is nil")
	ErrVersion     = errors.New("report: unsupported snapshot version")
	ErrCorrupt     = errors.New("report: corrupt snapshot")
)

// Snapshot is one archived run.
type Snapshot struct {
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Network   *network.Draft `json:"network"`
	Outcome   *solve.Outcome `json:"outcome,omitempty"`
	Failure   string         `json:"failure,omitempty"`
}

// NewSnapshot captures net and the result of a run. runErr may be nil.
func NewSnapshot(net *network.Network, out *solve.Outcome, runErr error) *Snapshot {
	s := &Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Outcome:   out,
	}
	if net != nil {
		s.Network = net.ToDraft()
	}
	if runErr != nil {
		s.Failure = runErr.Error()
	}

	return s
}

// WriteSnapshot encodes s as JSON through a snappy framed stream.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}
	sw := snappy.NewBufferedWriter(w)
	if err := json.NewEncoder(sw).Encode(s); err != nil {
		_ = sw.Close()
		return fmt.Errorf("report: encode: %w", err)
	}

	return sw.Close()
}

// ReadSnapshot decodes a stream produced by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(snappy.NewReader(bufio.NewReader(r)))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, s.Version)
	}

	return &s, nil
}

// SaveFile writes s to path, replacing any existing file.
func SaveFile(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := WriteSnapshot(f, s); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	defer f.Close()

	return ReadSnapshot(f)
}
