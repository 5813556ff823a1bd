package container

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

//go:embed container-2.0.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		schema, schemaErr = compiler.Compile(schemaJSON)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile container schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Imprint builds the container for a representation loaded by loader.
func Imprint(name, namespace string, rc *api.Context, loader string, data map[string]any) api.Container {
	c := api.Container{
		Schema:    api.ContainerSchema,
		ID:        api.ContainerID,
		Name:      name,
		Namespace: namespace,
		Loader:    loader,
	}
	if rc != nil {
		c.Representation = rc.Representation.ID()
	}
	if len(data) > 0 {
		c.Data = data
	}
	return c
}

// Validate checks c against the container schema.
func Validate(c api.Container) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode container: %w", err)
	}
	return ValidateJSON(raw)
}

// ValidateJSON checks a raw container document.
func ValidateJSON(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	result := s.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}

	fields := make([]string, 0, len(result.Errors))
	for field := range result.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %v", field, result.Errors[field]))
	}
	return avalonerrors.NewValidationError("container", strings.Join(messages, "; "), nil)
}

// Decode parses and validates a container document.
func Decode(raw []byte) (api.Container, error) {
	if err := ValidateJSON(raw); err != nil {
		return api.Container{}, err
	}
	var c api.Container
	if err := json.Unmarshal(raw, &c); err != nil {
		return api.Container{}, fmt.Errorf("decode container: %w", err)
	}
	return c, nil
}

// Canonical renders v as RFC 8785 canonical JSON.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
