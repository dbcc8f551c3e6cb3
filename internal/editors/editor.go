// Package editors translates block content into editable fields and field
// changes back into new content values. Editors hold no authoritative
// state: every Apply returns a fresh content value for the block store.
package editors

import (
	"fmt"
	"strconv"

	"expertene/internal/blocks"
)

// FieldKind tells a client which input to render for a field.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldRichText FieldKind = "rich_text"
	FieldURL      FieldKind = "url"
	FieldBool     FieldKind = "bool"
	FieldSelect   FieldKind = "select"
	FieldSlider   FieldKind = "slider"
	FieldCode     FieldKind = "code"
	FieldGrid     FieldKind = "grid"
)

// Field is one editable property of a block.
type Field struct {
	Name    string    `json:"name"`
	Kind    FieldKind `json:"kind"`
	Value   any       `json:"value"`
	Options []string  `json:"options,omitempty"`
	Min     float64   `json:"min,omitempty"`
	Max     float64   `json:"max,omitempty"`
	Step    float64   `json:"step,omitempty"`
}

// Editor is the per-kind editing surface of one block.
type Editor interface {
	Block() blocks.Block
	Fields() []Field
	// Apply returns the content that results from setting field to value.
	Apply(field string, value any) (blocks.Content, error)
}

// For returns the editor for b's kind.
func For(b blocks.Block) Editor {
	return blocks.Visit[Editor](b, selector{})
}

type selector struct{}

func (selector) VisitText(b blocks.Block, c blocks.TextContent) Editor {
	return &TextEditor{block: b, content: c}
}

func (selector) VisitImage(b blocks.Block, c blocks.ImageContent) Editor {
	return &ImageEditor{block: b, content: c}
}

func (selector) VisitVideo(b blocks.Block, c blocks.VideoContent) Editor {
	return &VideoEditor{block: b, content: c}
}

func (selector) VisitCode(b blocks.Block, c blocks.CodeContent) Editor {
	return &CodeEditor{block: b, content: c}
}

func (selector) VisitTable(b blocks.Block, c blocks.TableContent) Editor {
	return &TableEditor{block: b, content: c}
}

func (selector) VisitSpacer(b blocks.Block, c blocks.SpacerContent) Editor {
	return &SpacerEditor{block: b, content: c}
}

// UnknownFieldError is returned when a field name does not exist for a kind.
type UnknownFieldError struct {
	Kind  blocks.Type
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s block has no field %q", e.Kind, e.Field)
}

// Values arrive decoded from JSON, so numbers are usually float64.

func asString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", t)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func asInt(v any) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("expected bool, got %q", t)
		}
		return b, nil
	}
	return false, fmt.Errorf("expected bool, got %T", v)
}

func asMap(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return m, nil
}
