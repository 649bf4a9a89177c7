package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures everything needed to resume a world. Chunk content is
// not stored: it is regenerated from (seed, coordinate) and checked against
// the recorded fingerprint.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed       int64   `json:"seed"`
	ChunkSize  float64 `json:"chunk_size"`
	Radius     int     `json:"radius"`
	Metric     string  `json:"metric"`
	TickRateHz int     `json:"tick_rate_hz"`

	// Gameplay random stream position.
	RNGState uint64 `json:"rng_state"`

	Player     PlayerV1     `json:"player"`
	Cooldowns  []CooldownV1 `json:"cooldowns,omitempty"`
	Entities   []EntityV1   `json:"entities,omitempty"`
	NextEntity uint64       `json:"next_entity"`

	Center ChunkKeyV1 `json:"center"`
	Chunks []ChunkV1  `json:"chunks"`
}

type PlayerV1 struct {
	Pos          [3]float64     `json:"pos"`
	Rot          [3]float64     `json:"rot"`
	Collectibles int            `json:"collectibles"`
	Score        int            `json:"score"`
	Vehicle      string         `json:"vehicle"`
	Items        map[string]int `json:"items,omitempty"`
}

// CooldownV1 records when an island was last collected from.
type CooldownV1 struct {
	CX       int    `json:"cx"`
	CZ       int    `json:"cz"`
	LastTick uint64 `json:"last_tick"`
}

type EntityV1 struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Anchor      [3]float64 `json:"anchor"`
	Pos         [3]float64 `json:"pos"`
	SpawnTick   uint64     `json:"spawn_tick"`
	ExpiresTick uint64     `json:"expires_tick"`
}

type ChunkKeyV1 struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

type ChunkV1 struct {
	CX          int    `json:"cx"`
	CZ          int    `json:"cz"`
	Fingerprint uint64 `json:"fingerprint"`
	HasIsland   bool   `json:"has_island"`
	Plants      int    `json:"plants"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is for humans and tooling; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
