package vectorindex

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"pdfchat/internal/domain"
)

const snapshotVersion = 1

type snapshot struct {
	Version   int
	BuildID   string
	Metric    string
	Dimension int
	Model     string
	Truncated int
	CreatedAt time.Time
	Chunks    []domain.Chunk
	Vectors   [][]float32
}

// envelope is what is actually stored: the gob-encoded snapshot and its
// BLAKE2b-256 checksum.
type envelope struct {
	Version  int
	Checksum [blake2b.Size256]byte
	Payload  []byte
}

var errChecksum = errors.New("index checksum mismatch")

func encodeSnapshot(s *snapshot) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(s); err != nil {
		return nil, fmt.Errorf("encode index failed: %w", err)
	}
	env := envelope{
		Version:  snapshotVersion,
		Checksum: blake2b.Sum256(payload.Bytes()),
		Payload:  payload.Bytes(),
	}
	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(&env); err != nil {
		return nil, fmt.Errorf("encode index envelope failed: %w", err)
	}
	return out.Bytes(), nil
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode index envelope failed: %w", err)
	}
	if env.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported index version %d", env.Version)
	}
	if blake2b.Sum256(env.Payload) != env.Checksum {
		return nil, errChecksum
	}
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode index failed: %w", err)
	}
	if len(s.Chunks) != len(s.Vectors) {
		return nil, fmt.Errorf("index holds %d chunks but %d vectors", len(s.Chunks), len(s.Vectors))
	}
	return &s, nil
}
