package todos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"todoapi/internal/validation"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// decodeBody returns the request body as a JSON document. JSON and
// urlencoded forms are parsed; an empty body, or one in any other media type,
// reads as an empty object. A body that cannot be parsed is an error.
func decodeBody(w http.ResponseWriter, r *http.Request) (any, error) {
	if r.Body == nil {
		return map[string]any{}, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			return nil, fmt.Errorf("parse content type %q: %w", ct, err)
		}
	}
	switch mediaType {
	case "application/json":
		return decodeJSON(raw)
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode form body: %w", err)
		}
		return validation.QueryDocument(values), nil
	default:
		return map[string]any{}, nil
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json body: trailing data after value")
	}
	return doc, nil
}
