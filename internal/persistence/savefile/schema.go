package savefile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const saveSchemaURL = "https://openidle.dev/schemas/save.schema.json"

//go:embed schema/save.schema.json
var saveSchemaJSON []byte

var saveSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(saveSchemaURL, bytes.NewReader(saveSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(saveSchemaURL)
})

// Validate checks raw state JSON against the embedded save schema. Missing
// fields are allowed; wrongly typed ones are not.
func Validate(raw []byte) error {
	s, err := saveSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
