package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	money, ok := c.Resources.Get("money")
	if !ok {
		t.Fatalf("missing money")
	}
	if money.BaseMax != 25 || money.InitialAmount != 2 {
		t.Fatalf("money=%+v", money)
	}
	sleep, ok := c.Tasks.Get("sleep")
	if !ok || !sleep.IsRest() {
		t.Fatalf("sleep should be a rest task: %+v", sleep)
	}
	if got, ok := c.Tasks.Get("doom_scroll"); !ok || got.Type != TaskNormal {
		t.Fatalf("doom_scroll type=%q want normal", got.Type)
	}
	// Questline bundles append to every table.
	if !c.Resources.Has("quest_cat") || !c.Actions.Has("quest_cat_start") || !c.Items.Has("glowing_collar") {
		t.Fatalf("questline entries missing")
	}
	if c.Resources.Order[0] != "money" {
		t.Fatalf("order[0]=%q want money", c.Resources.Order[0])
	}
	if len(c.Digest) != 64 {
		t.Fatalf("digest=%q", c.Digest)
	}
}

func TestLoad_DigestStable(t *testing.T) {
	a, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	b, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	if a.Digest != b.Digest {
		t.Fatalf("digest mismatch: %s vs %s", a.Digest, b.Digest)
	}
}

func minimalBundle() Bundle {
	return Bundle{
		Resources: []ResourceDef{{ID: "money", BaseMax: 25, InitialAmount: 2}},
		Actions: []ActionDef{{
			ID:      "earn",
			Effects: []Effect{{Kind: EffectAddResource, ResourceID: "money", Amount: 1}},
		}},
	}
}

func TestNew_Minimal(t *testing.T) {
	if _, err := New(minimalBundle()); err != nil {
		t.Fatalf("new: %v", err)
	}
}

func TestNew_DuplicateID(t *testing.T) {
	b := minimalBundle()
	b.Resources = append(b.Resources, ResourceDef{ID: "money", BaseMax: 1})
	_, err := New(b)
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestNew_UnknownReferences(t *testing.T) {
	b := minimalBundle()
	b.Actions = append(b.Actions, ActionDef{
		ID:            "broken",
		Costs:         []Cost{{ResourceID: "gold", Amount: 1}},
		Prerequisites: []Prerequisite{{TaskID: "nope"}},
		Locks:         []string{"ghost"},
	})
	_, err := New(b)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{`unknown resource "gold"`, `unknown task "nope"`, `locks unknown id "ghost"`} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestNew_StreamedEffectMustAddResource(t *testing.T) {
	b := minimalBundle()
	b.Tasks = []TaskDef{{
		ID:               "work",
		EffectsPerSecond: []Effect{{Kind: EffectMaxFlat, ResourceID: "money", Amount: 1}},
	}}
	if _, err := New(b); err == nil {
		t.Fatalf("expected error for streamed max effect")
	}

	chance := 0.5
	b.Tasks[0].EffectsPerSecond[0].Chance = &chance
	if _, err := New(b); err != nil {
		t.Fatalf("chance event should be allowed: %v", err)
	}
}

func TestLoad_RejectsUnknownEffectType(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("resources.json", `[{"id":"money","base_max":10}]`)
	write("actions.json", `[{"id":"a","category":"x","effects":[{"type":"teleport","amount":1}]}]`)
	write("tasks.json", `[]`)

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "actions.json") {
		t.Fatalf("expected actions.json schema error, got %v", err)
	}
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty config dir")
	}
}
