// Package mapfile reads and writes top-level mappings in JSON or YAML files
// with key order preserved. The format is chosen by file extension: ".json"
// is JSON, anything else is YAML.
package mapfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one key of a decoded mapping. Decode unmarshals its value.
type Entry struct {
	Key    string
	decode func(any) error
}

// Decode unmarshals the entry's value into v.
func (e Entry) Decode(v any) error { return e.decode(v) }

// KV is one key/value pair to encode.
type KV struct {
	Key   string
	Value any
}

// IsJSON reports whether path is written as JSON.
func IsJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Parse decodes data as a mapping, in file order. An empty document is an
// empty mapping.
func Parse(path string, data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if IsJSON(path) {
		return parseJSON(data)
	}
	return parseYAML(data)
}

func parseJSON(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("parsing JSON: top level must be an object")
	}

	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing JSON value for %q: %w", key, err)
		}
		entries = append(entries, Entry{
			Key:    key,
			decode: func(v any) error { return json.Unmarshal(raw, v) },
		})
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return entries, nil
}

func parseYAML(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("parsing YAML: top level must be a mapping")
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		val := root.Content[i+1]
		entries = append(entries, Entry{
			Key:    root.Content[i].Value,
			decode: val.Decode,
		})
	}
	return entries, nil
}

// Marshal encodes kvs as a mapping in the format implied by path.
func Marshal(path string, kvs []KV) ([]byte, error) {
	if IsJSON(path) {
		return marshalJSON(kvs)
	}
	return marshalYAML(kvs)
}

func marshalJSON(kvs []KV) ([]byte, error) {
	if len(kvs) == 0 {
		return []byte("{}\n"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, kv := range kvs {
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.MarshalIndent(kv.Value, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", kv.Key, err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(kvs)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func marshalYAML(kvs []KV) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range kvs {
		var val yaml.Node
		if err := val.Encode(kv.Value); err != nil {
			return nil, fmt.Errorf("encoding %q: %w", kv.Key, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: kv.Key},
			&val,
		)
	}
	return yaml.Marshal(root)
}

// Read loads and parses path. A missing file is an empty mapping.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	entries, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Write encodes kvs and replaces path through a temp file and rename.
func Write(path string, kvs []KV) error {
	data, err := Marshal(path, kvs)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
