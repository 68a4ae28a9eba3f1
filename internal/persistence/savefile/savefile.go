// Package savefile stores GameState snapshots: a zstd stream holding one JSON
// header line followed by the JSON state, and a portable base64 text form for
// export and import.
package savefile

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"openidle.dev/internal/sim/state"
)

const Version = 1

var ErrMalformed = errors.New("malformed save")

type Header struct {
	Version       int    `json:"version"`
	Tick          uint64 `json:"tick"`
	TotalTimeMs   int64  `json:"total_time_ms"`
	CatalogDigest string `json:"catalog_digest"`
	RNGState      uint64 `json:"rng_state"`
	Reason        string `json:"reason,omitempty"` // "autosave", "pre_reset", "shutdown"
	SavedAtUnixMs int64  `json:"saved_at_unix_ms,omitempty"`
}

type Save struct {
	Header Header
	State  *state.GameState
}

func Write(path string, s Save) error {
	if s.State == nil {
		return errors.New("savefile: nil state")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, s); err != nil {
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

func encode(w io.Writer, s Save) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	h := s.Header
	if h.Version == 0 {
		h.Version = Version
	}
	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(s.State); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// Read returns the header and the raw state JSON. The state is left raw so
// the caller can merge it over current defaults.
func Read(path string) (Header, json.RawMessage, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, h.Version)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	body = bytes.TrimSpace(body)
	if err := Validate(body); err != nil {
		return h, nil, err
	}
	return h, json.RawMessage(body), nil
}

// EncodeText renders st in the portable export form.
func EncodeText(st *state.GameState) (string, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeText reverses EncodeText and checks the payload against the save
// schema. The returned JSON still needs merging over a fresh state.
func DecodeText(text string) (json.RawMessage, error) {
	b, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(text))))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformed, err)
	}
	if err := Validate(b); err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
