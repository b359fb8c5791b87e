package x12

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaValidation is returned when a document does not conform to its
// transaction set schema.
var ErrSchemaValidation = errors.New("x12: schema validation failed")

//go:embed schema/276.json
var schema276 []byte

const schema276URL = "https://maven.local/schema/x12/005010X212-276.json"

var (
	compileOnce sync.Once
	compiled276 *jsonschema.Schema
	compileErr  error
)

func claimStatusRequestSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schema276URL, bytes.NewReader(schema276)); err != nil {
			compileErr = fmt.Errorf("x12: load 276 schema: %w", err)
			return
		}
		compiled276, compileErr = c.Compile(schema276URL)
		if compileErr != nil {
			compileErr = fmt.Errorf("x12: compile 276 schema: %w", compileErr)
		}
	})
	return compiled276, compileErr
}

// Validate checks r against the 005010X212 JSON schema. Validation failures
// wrap ErrSchemaValidation; any other error is an encoding problem.
func Validate(r *ClaimStatusRequest) error {
	schema, err := claimStatusRequestSchema()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("x12: encode document: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("x12: decode document: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrSchemaValidation, verr.Error())
		}
		return fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return nil
}

// Encode validates r and renders it with the given delimiters. Nothing is
// rendered when validation fails.
func Encode(r *ClaimStatusRequest, d Delimiters) ([]byte, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	return Serialize(r.Segments(d), d), nil
}
