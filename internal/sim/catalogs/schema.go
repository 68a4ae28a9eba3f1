package catalogs

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const bundleSchemaURL = "https://openidle.dev/schemas/catalog.schema.json"

//go:embed schema/catalog.schema.json
var bundleSchemaJSON []byte

var bundleSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(bundleSchemaURL, bytes.NewReader(bundleSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(bundleSchemaURL)
})

// validateBundle checks a decoded (map/slice/float64) bundle against the
// embedded catalog schema.
func validateBundle(v any) error {
	s, err := bundleSchema()
	if err != nil {
		return err
	}
	return s.Validate(v)
}
