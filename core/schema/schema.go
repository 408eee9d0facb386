// Package schema validates request bodies against JSON schemas.
//
// A Validator holds top level schemas, addressed by their "$id", and shared
// reference schemas. Top level schemas may reference the shared ones but not
// each other.
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/apae-gestao/apae/core"
	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError is one violation in a document. Field is empty for the document itself.
type FieldError struct {
	Field   string `json:"Campo"`
	Message string `json:"Mensagem"`
}

// ValidationError reports an invalid document. It wraps core.ErrValidation.
type ValidationError struct {
	SchemaID string       `json:"-"`
	Errors   []FieldError `json:"Erros"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, f := range e.Errors {
		if f.Field == "" {
			msgs[i] = f.Message
		} else {
			msgs[i] = f.Field + ": " + f.Message
		}
	}
	return fmt.Sprintf("%s: the document is not valid: %s", core.ErrValidation, strings.Join(msgs, "; "))
}

// Unwrap makes ValidationError match core.ErrValidation
func (e *ValidationError) Unwrap() error { return core.ErrValidation }

// IsValidationError returns true if err reports an invalid document
func IsValidationError(err error) bool {
	return errors.Is(err, core.ErrValidation)
}

// Validator validates documents against compiled schemas
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// readSchemas returns the json files directly in dir, sorted by name
func readSchemas(fsys fs.FS, dir string) ([]string, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("cannot read schema %s: %w", name, err)
		}
		docs = append(docs, string(data))
	}
	return docs, nil
}

// NewValidatorFromFS creates a Validator from the json files of fsys. Files
// at the top are top level schemas, files in the optional "refs" folder are
// the shared references.
func NewValidatorFromFS(fsys fs.FS) (*Validator, error) {
	schemas, err := readSchemas(fsys, ".")
	if err != nil {
		return nil, err
	}
	refs, err := readSchemas(fsys, "refs")
	if err != nil {
		return nil, err
	}
	return NewValidator(schemas, refs)
}

// NewValidator compiles the top level schemas with the shared refs. Every
// schema needs a unique "$id".
func NewValidator(schemas []string, refs []string) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(schemas))}
	for _, doc := range schemas {
		var header struct {
			ID string `json:"$id"`
		}
		if err := json.Unmarshal([]byte(doc), &header); err != nil {
			return nil, fmt.Errorf("cannot parse schema: %w", err)
		}
		if header.ID == "" {
			return nil, fmt.Errorf("schema without $id: %.60s", doc)
		}
		if _, ok := v.schemas[header.ID]; ok {
			return nil, fmt.Errorf("duplicate schema %s", header.ID)
		}
		compiled, err := compile(doc, refs)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", header.ID, err)
		}
		v.schemas[header.ID] = compiled
	}
	return v, nil
}

// compile uses a fresh loader per schema, a loader only compiles one root
func compile(doc string, refs []string) (*gojsonschema.Schema, error) {
	sl := gojsonschema.NewSchemaLoader()
	for _, ref := range refs {
		if err := sl.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
			return nil, fmt.Errorf("cannot add ref: %w", err)
		}
	}
	return sl.Compile(gojsonschema.NewStringLoader(doc))
}

// HasSchema returns true if schemaID is known
func (v *Validator) HasSchema(schemaID string) bool {
	if v == nil {
		return false
	}
	_, ok := v.schemas[schemaID]
	return ok
}

// ValidateStruct validates a Go value as it would be marshalled
func (v *Validator) ValidateStruct(doc interface{}, schemaID string) error {
	return v.validate(gojsonschema.NewGoLoader(doc), schemaID)
}

// ValidateString validates a JSON document
func (v *Validator) ValidateString(doc, schemaID string) error {
	return v.validate(gojsonschema.NewStringLoader(doc), schemaID)
}

// ValidateBytes validates a JSON document
func (v *Validator) ValidateBytes(doc []byte, schemaID string) error {
	return v.validate(gojsonschema.NewBytesLoader(doc), schemaID)
}

// validate returns a *ValidationError for invalid documents. Unknown schemas
// are a programming error and do not wrap core.ErrValidation.
func (v *Validator) validate(loader gojsonschema.JSONLoader, schemaID string) error {
	s, ok := v.schemas[schemaID]
	if !ok {
		return fmt.Errorf("unknown schema %s", schemaID)
	}
	result, err := s.Validate(loader)
	if err != nil {
		// the document is not JSON at all
		return &ValidationError{SchemaID: schemaID, Errors: []FieldError{{Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{SchemaID: schemaID}
	for _, re := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{Field: fieldOf(re), Message: re.Description()})
	}
	sort.SliceStable(verr.Errors, func(i, j int) bool { return verr.Errors[i].Field < verr.Errors[j].Field })
	return verr
}

// fieldOf returns the dotted path of the offending property. Missing required
// properties are reported on the property, not on their parent.
func fieldOf(re gojsonschema.ResultError) string {
	field := re.Field()
	if field == "(root)" {
		field = ""
	}
	if re.Type() == "required" {
		property, ok := re.Details()["property"].(string)
		switch {
		case !ok || field == property || strings.HasSuffix(field, "."+property):
		case field == "":
			return property
		default:
			return field + "." + property
		}
	}
	return field
}
