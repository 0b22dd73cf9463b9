// Package validation checks decoded request bodies and query parameters
// against embedded JSON Schemas and reports the first failure as a
// domain.ValidationError.
package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"todoapi/pkg/domain"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema is a compiled request schema paired with the message reported to
// clients when a document does not conform.
type Schema struct {
	name     string
	message  string
	compiled *jsonschema.Schema
}

// Request schemas, compiled once at package initialisation.
// Only string values pass. A non-string text or id in a body, and a query
// parameter given more than once, fail validation with 400 instead of being
// coerced.
var (
	AddTodo      = mustLoad("add_todo.json", "Text is a required field")
	UpdateTodo   = mustLoad("update_todo.json", "Both id and text are required")
	GetTodoID    = mustLoad("id_query.json", "Invalid or missing id parameter")
	DeleteTodoID = mustLoad("id_query.json", "id is required")
)

func mustLoad(file, message string) *Schema {
	s, err := Load(file, message)
	if err != nil {
		panic(err)
	}
	return s
}

// Load compiles an embedded schema file.
func Load(file, message string) (*Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + file)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", file, err)
	}
	compiler := jsonschema.NewCompiler()
	loc := "mem://schemas/" + file
	if err := compiler.AddResource(loc, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", file, err)
	}
	compiled, err := compiler.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", file, err)
	}
	return &Schema{name: file, message: message, compiled: compiled}, nil
}

// Name returns the schema file name.
func (s *Schema) Name() string { return s.name }

// Validate checks a decoded JSON document (map[string]any, []any, string,
// float64, bool or nil). It returns nil or a *domain.ValidationError.
func (s *Schema) Validate(doc any) error {
	err := s.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &domain.ValidationError{Message: s.message, Detail: err.Error()}
	}
	leaf := firstLeaf(ve)
	return &domain.ValidationError{
		Message: s.message,
		Field:   fieldOf(leaf),
		Detail:  leaf.Message,
	}
}

// ValidateQuery validates query parameters. A parameter given once is checked
// as a string; a repeated parameter is checked as an array.
func (s *Schema) ValidateQuery(values url.Values) error {
	return s.Validate(QueryDocument(values))
}

// QueryDocument converts query parameters into the document shape the schemas
// expect.
func QueryDocument(values url.Values) map[string]any {
	doc := make(map[string]any, len(values))
	for key, vals := range values {
		switch len(vals) {
		case 0:
			continue
		case 1:
			doc[key] = vals[0]
		default:
			arr := make([]any, len(vals))
			for i, v := range vals {
				arr[i] = v
			}
			doc[key] = arr
		}
	}
	return doc
}

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

var missingProperty = regexp.MustCompile(`missing propert(?:y|ies): '([^']+)'`)

func fieldOf(err *jsonschema.ValidationError) string {
	if m := missingProperty.FindStringSubmatch(err.Message); m != nil {
		return m[1]
	}
	ptr := strings.TrimPrefix(err.InstanceLocation, "/")
	if ptr == "" {
		return ""
	}
	first, _, _ := strings.Cut(ptr, "/")
	first = strings.ReplaceAll(first, "~1", "/")
	return strings.ReplaceAll(first, "~0", "~")
}
