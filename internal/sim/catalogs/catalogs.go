package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalogs is the immutable content set consumed by the engine. Tables keep
// file order so every iteration over content is deterministic.
type Catalogs struct {
	Resources  Table[ResourceDef]
	Actions    Table[ActionDef]
	Tasks      Table[TaskDef]
	Converters Table[ConverterDef]
	Items      Table[ItemDef]
	Slots      Table[SlotDef]
	Categories Table[CategoryDef]

	Digest string
}

type Table[T any] struct {
	Order  []string
	ByID   map[string]T
	Digest string
}

func (t Table[T]) Get(id string) (T, bool) {
	v, ok := t.ByID[id]
	return v, ok
}

func (t Table[T]) Has(id string) bool {
	_, ok := t.ByID[id]
	return ok
}

// Each visits entries in catalog order.
func (t Table[T]) Each(fn func(id string, def T)) {
	for _, id := range t.Order {
		fn(id, t.ByID[id])
	}
}

// Bundle is the on-disk shape of a questline file and the in-code shape used
// to assemble catalogs.
type Bundle struct {
	Resources  []ResourceDef  `json:"resources,omitempty"`
	Actions    []ActionDef    `json:"actions,omitempty"`
	Tasks      []TaskDef      `json:"tasks,omitempty"`
	Converters []ConverterDef `json:"converters,omitempty"`
	Items      []ItemDef      `json:"items,omitempty"`
	Slots      []SlotDef      `json:"slots,omitempty"`
	Categories []CategoryDef  `json:"categories,omitempty"`
}

func (b *Bundle) merge(o Bundle) {
	b.Resources = append(b.Resources, o.Resources...)
	b.Actions = append(b.Actions, o.Actions...)
	b.Tasks = append(b.Tasks, o.Tasks...)
	b.Converters = append(b.Converters, o.Converters...)
	b.Items = append(b.Items, o.Items...)
	b.Slots = append(b.Slots, o.Slots...)
	b.Categories = append(b.Categories, o.Categories...)
}

type catalogFile struct {
	name     string
	key      string
	required bool
}

var catalogFiles = []catalogFile{
	{name: "categories.json", key: "categories"},
	{name: "resources.json", key: "resources", required: true},
	{name: "actions.json", key: "actions", required: true},
	{name: "tasks.json", key: "tasks", required: true},
	{name: "converters.json", key: "converters"},
	{name: "slots.json", key: "slots"},
	{name: "items.json", key: "items"},
}

// Load reads every catalog file under configDir, then any questline bundles in
// configDir/questlines (sorted by file name), and validates the result.
func Load(configDir string) (*Catalogs, error) {
	var b Bundle
	for _, f := range catalogFiles {
		raw, err := os.ReadFile(filepath.Join(configDir, f.name))
		if err != nil {
			if os.IsNotExist(err) && !f.required {
				continue
			}
			return nil, err
		}
		part, err := decodeList(f.key, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		b.merge(part)
	}

	files, err := questlineFiles(filepath.Join(configDir, "questlines"))
	if err != nil {
		return nil, err
	}
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		part, err := decodeBundle(raw)
		if err != nil {
			return nil, fmt.Errorf("questline %s: %w", filepath.Base(p), err)
		}
		b.merge(part)
	}
	return New(b)
}

func questlineFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// decodeList validates a top-level array file as if it were the given bundle key.
func decodeList(key string, raw []byte) (Bundle, error) {
	var list any
	if err := json.Unmarshal(raw, &list); err != nil {
		return Bundle{}, err
	}
	if err := validateBundle(map[string]any{key: list}); err != nil {
		return Bundle{}, err
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return Bundle{}, err
	}
	var b Bundle
	if err := json.Unmarshal(wrapped, &b); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

func decodeBundle(raw []byte) (Bundle, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Bundle{}, err
	}
	if err := validateBundle(v); err != nil {
		return Bundle{}, err
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

// New indexes a bundle and checks referential integrity.
func New(b Bundle) (*Catalogs, error) {
	var c Catalogs
	var errs []error

	b.Tasks = append([]TaskDef(nil), b.Tasks...)
	for i := range b.Tasks {
		if b.Tasks[i].Type == "" {
			b.Tasks[i].Type = TaskNormal
		}
	}

	c.Resources, errs = buildTable("resources", b.Resources, func(d ResourceDef) string { return d.ID }, errs)
	c.Actions, errs = buildTable("actions", b.Actions, func(d ActionDef) string { return d.ID }, errs)
	c.Tasks, errs = buildTable("tasks", b.Tasks, func(d TaskDef) string { return d.ID }, errs)
	c.Converters, errs = buildTable("converters", b.Converters, func(d ConverterDef) string { return d.ID }, errs)
	c.Items, errs = buildTable("items", b.Items, func(d ItemDef) string { return d.ID }, errs)
	c.Slots, errs = buildTable("slots", b.Slots, func(d SlotDef) string { return d.ID }, errs)
	c.Categories, errs = buildTable("categories", b.Categories, func(d CategoryDef) string { return d.ID }, errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	h := sha256.New()
	for _, d := range []string{
		c.Resources.Digest, c.Actions.Digest, c.Tasks.Digest, c.Converters.Digest,
		c.Items.Digest, c.Slots.Digest, c.Categories.Digest,
	} {
		h.Write([]byte(d))
	}
	c.Digest = hex.EncodeToString(h.Sum(nil))
	return &c, nil
}

func buildTable[T any](name string, defs []T, idOf func(T) string, errs []error) (Table[T], []error) {
	t := Table[T]{
		Order: make([]string, 0, len(defs)),
		ByID:  make(map[string]T, len(defs)),
	}
	for _, d := range defs {
		id := idOf(d)
		if id == "" {
			errs = append(errs, fmt.Errorf("%s: empty id", name))
			continue
		}
		if _, dup := t.ByID[id]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate id %q", name, id))
			continue
		}
		t.ByID[id] = d
		t.Order = append(t.Order, id)
	}
	b, _ := json.Marshal(defs)
	t.Digest = sha256Hex(b)
	return t, errs
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
