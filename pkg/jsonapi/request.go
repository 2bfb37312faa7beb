package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeAttributes reads a request body holding either a JSON object or a
// JSON:API document ({"data": {"attributes": {...}}}) and returns the
// attributes. Numbers decode as json.Number so integers keep their
// precision. An empty body yields an empty map.
func DecodeAttributes(r io.Reader) (map[string]any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}

	if attrs, ok := documentAttributes(doc); ok {
		return attrs, nil
	}
	return doc, nil
}

// documentAttributes returns the attributes of doc when doc is a JSON:API
// document: only top-level members data, meta and jsonapi, with data
// holding an attributes object.
func documentAttributes(doc map[string]any) (map[string]any, bool) {
	for k := range doc {
		if k != "data" && k != "meta" && k != "jsonapi" {
			return nil, false
		}
	}
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	attrs, ok := data["attributes"].(map[string]any)
	return attrs, ok
}
