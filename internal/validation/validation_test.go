package validation

import (
	"errors"
	"net/url"
	"testing"

	"todoapi/pkg/domain"
)

func TestAddTodoSchema(t *testing.T) {
	cases := []struct {
		name  string
		doc   any
		ok    bool
		field string
	}{
		{"text present", map[string]any{"text": "buy milk"}, true, ""},
		{"extra fields allowed", map[string]any{"text": "a", "priority": float64(1)}, true, ""},
		{"missing text", map[string]any{}, false, "text"},
		{"empty text", map[string]any{"text": ""}, false, "text"},
		{"non string text", map[string]any{"text": float64(5)}, false, "text"},
		{"null text", map[string]any{"text": nil}, false, "text"},
		{"array body", []any{"text"}, false, ""},
		{"string body", "text", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AddTodo.Validate(tc.doc)
			if tc.ok {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Message != "Text is a required field" {
				t.Fatalf("unexpected message %q", ve.Message)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%s)", tc.field, ve.Field, ve.Detail)
			}
			if ve.Detail == "" {
				t.Fatalf("expected detail")
			}
		})
	}
}

func TestUpdateTodoSchema(t *testing.T) {
	if err := UpdateTodo.Validate(map[string]any{"id": "x", "text": "y"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	for _, doc := range []map[string]any{
		{"id": "x"},
		{"text": "y"},
		{"id": "", "text": "y"},
		{"id": float64(1), "text": "y"},
		{},
	} {
		err := UpdateTodo.Validate(doc)
		if !domain.IsValidation(err) {
			t.Fatalf("expected validation error for %v, got %v", doc, err)
		}
		if err.(*domain.ValidationError).Message != "Both id and text are required" {
			t.Fatalf("unexpected message: %v", err)
		}
	}
}

func TestIDQuerySchemas(t *testing.T) {
	if err := GetTodoID.ValidateQuery(url.Values{"id": {"abc"}}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	for _, q := range []url.Values{
		{},
		{"id": {""}},
		{"id": {"a", "b"}},
	} {
		err := GetTodoID.ValidateQuery(q)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Message != "Invalid or missing id parameter" || ve.Field != "id" {
			t.Fatalf("expected id validation error for %v, got %v", q, err)
		}
		err = DeleteTodoID.ValidateQuery(q)
		if !errors.As(err, &ve) || ve.Message != "id is required" {
			t.Fatalf("expected delete validation error for %v, got %v", q, err)
		}
	}
}

func TestQueryDocument(t *testing.T) {
	doc := QueryDocument(url.Values{"id": {"a"}, "tag": {"x", "y"}, "empty": {}})
	if doc["id"] != "a" {
		t.Fatalf("expected single value as string, got %#v", doc["id"])
	}
	if arr, ok := doc["tag"].([]any); !ok || len(arr) != 2 {
		t.Fatalf("expected repeated value as array, got %#v", doc["tag"])
	}
	if _, ok := doc["empty"]; ok {
		t.Fatalf("empty parameter must be dropped")
	}
}

func TestLoadUnknownSchema(t *testing.T) {
	if _, err := Load("missing.json", "x"); err == nil {
		t.Fatalf("expected error for missing schema")
	}
	if AddTodo.Name() != "add_todo.json" {
		t.Fatalf("unexpected name %s", AddTodo.Name())
	}
}
