package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// CompileSchema compiles one embedded message schema by short name, e.g.
// "obs" for schemas/obs.schema.json.
func CompileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return s, nil
}

// Validators holds the compiled schemas for everything the server sends us.
// Compile once at startup, validate every inbound message before decoding
// it into typed structs.
type Validators struct {
	Welcome *jsonschema.Schema
	Obs     *jsonschema.Schema
	Result  *jsonschema.Schema
}

func NewValidators() (*Validators, error) {
	v := &Validators{}
	var err error
	if v.Welcome, err = CompileSchema("welcome"); err != nil {
		return nil, err
	}
	if v.Obs, err = CompileSchema("obs"); err != nil {
		return nil, err
	}
	if v.Result, err = CompileSchema("result"); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateRaw checks one raw wire message against a compiled schema.
func ValidateRaw(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
