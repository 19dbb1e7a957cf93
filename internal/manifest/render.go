package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/lolmeida/kstack/internal/fileutil"
	"github.com/lolmeida/kstack/internal/model"
)

// EncodeYAML renders a document as YAML with sorted map keys.
func EncodeYAML(doc model.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal values: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal values: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJSON renders a document as indented JSON with sorted map keys.
func EncodeJSON(doc model.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal values: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteValues writes the document as YAML to path atomically.
func WriteValues(doc model.Document, path string) error {
	data, err := EncodeYAML(doc)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	return nil
}

// LoadValuesOverlay loads a YAML values file.
func LoadValuesOverlay(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(content, &values); err != nil {
		return nil, fmt.Errorf("parse values file: %w", err)
	}
	if values == nil {
		values = make(map[string]any)
	}

	return values, nil
}

// TemplateFuncs returns the sprig functions plus toYaml/toJson helpers
// that operate on document fragments.
func TemplateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["toYaml"] = func(v any) (string, error) {
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(bytes.TrimSuffix(data, []byte("\n"))), nil
	}
	funcs["toJson"] = func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return funcs
}

// RenderTemplate executes a Go template against a values document.
func RenderTemplate(name, text string, doc model.Document) (string, error) {
	tmpl, err := template.New(name).
		Funcs(TemplateFuncs()).
		Option("missingkey=zero").
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render error: %w", err)
	}
	return buf.String(), nil
}

// RenderTemplateFile renders the template at path.
func RenderTemplateFile(path string, doc model.Document) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read: %w", err)
	}
	return RenderTemplate(filepath.Base(path), string(content), doc)
}
