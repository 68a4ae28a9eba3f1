package savefile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"openidle.dev/internal/sim/state"
)

func sampleState() *state.GameState {
	return &state.GameState{
		Resources:          map[string]state.Resource{"money": {Current: 12.5, Unlocked: true}},
		Actions:            map[string]state.Action{"scratch": {Executions: 3, Unlocked: true, LastUsedMs: 4200}},
		Tasks:              map[string]state.Task{"sleep": {Level: 2, XP: 10, Unlocked: true}},
		Converters:         map[string]state.Converter{},
		Inventory:          []string{"notebook"},
		Equipment:          map[string]string{"hand_r": "lucky_coin"},
		Modifiers:          []state.Modifier{{SourceID: "Wallet", Kind: state.ModFlat, Value: 25, ResourceID: "money", Property: state.PropMax}},
		Log:                []string{"Used Wallet"},
		TotalTimeMs:        4200,
		ActiveTaskIDs:      []string{},
		MaxConcurrentTasks: 1,
		RestTaskID:         "sleep",
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "current.save.zst")
	in := Save{
		Header: Header{Tick: 42, TotalTimeMs: 4200, CatalogDigest: "abc", RNGState: 99, Reason: "autosave"},
		State:  sampleState(),
	}
	if err := Write(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	h, raw, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Version != Version || h.Tick != 42 || h.RNGState != 99 || h.CatalogDigest != "abc" || h.Reason != "autosave" {
		t.Fatalf("header mismatch: %+v", h)
	}
	var got state.GameState
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	want, _ := json.Marshal(in.State)
	have, _ := json.Marshal(&got)
	if string(want) != string(have) {
		t.Fatalf("state mismatch:\nwant %s\nhave %s", want, have)
	}
}

func TestRead_NotZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.save.zst")
	if err := os.WriteFile(path, []byte("plain text\n{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Read(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestText_RoundTrip(t *testing.T) {
	text, err := EncodeText(sampleState())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := DecodeText(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var got state.GameState
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Resources["money"].Current != 12.5 || got.Equipment["hand_r"] != "lucky_coin" {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestDecodeText_Malformed(t *testing.T) {
	cases := map[string]string{
		"not base64":   "%%%",
		"not json":     "bm90IGpzb24=",                             // "not json"
		"wrong type":   "eyJyZXNvdXJjZXMiOiA1fQ==",                 // {"resources": 5}
		"bad modifier": "eyJtb2RpZmllcnMiOlt7ImtpbmQiOiJ4In1dfQ==", // {"modifiers":[{"kind":"x"}]}
	}
	for name, text := range cases {
		if _, err := DecodeText(text); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestDecodeText_PartialSaveIsValid(t *testing.T) {
	// {"resources":{"money":{"current":3}}}
	if _, err := DecodeText("eyJyZXNvdXJjZXMiOnsibW9uZXkiOnsiY3VycmVudCI6M319fQ=="); err != nil {
		t.Fatalf("partial save rejected: %v", err)
	}
}
