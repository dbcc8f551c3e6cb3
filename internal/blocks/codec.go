package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type wireBlock struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON writes the {"id","type","content"} shape. Text content is a
// bare string; every other kind is an object.
func (b Block) MarshalJSON() ([]byte, error) {
	var content any = b.Content
	if t, ok := b.Content.(TextContent); ok {
		content = t.HTML
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal %s block content: %w", b.Type, err)
	}
	return json.Marshal(wireBlock{ID: b.ID, Type: b.Type, Content: raw})
}

// UnmarshalJSON reads a block, using "type" to pick the content shape.
// Missing optional fields take the kind's defaults.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := ParseType(string(w.Type))
	if err != nil {
		return err
	}
	content, err := decodeContent(t, w.Content)
	if err != nil {
		return fmt.Errorf("block %s: %w", w.ID, err)
	}
	*b = Block{ID: w.ID, Type: t, Content: content}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeContent(t Type, raw json.RawMessage) (Content, error) {
	switch t {
	case TypeText:
		var html string
		if !isNull(raw) && bytes.TrimSpace(raw)[0] == '"' {
			if err := json.Unmarshal(raw, &html); err != nil {
				return nil, err
			}
		}
		return TextContent{HTML: html}, nil

	case TypeImage:
		c := DefaultContent(TypeImage).(ImageContent)
		if err := unmarshalInto(raw, &c); err != nil {
			return nil, err
		}
		if c.Width == 0 {
			c.Width = 100
		}
		if c.SidePosition == "" {
			c.SidePosition = SideRight
		}
		return c, nil

	case TypeVideo:
		var c VideoContent
		if err := unmarshalInto(raw, &c); err != nil {
			return nil, err
		}
		return c, nil

	case TypeCode:
		var c CodeContent
		if err := unmarshalInto(raw, &c); err != nil {
			return nil, err
		}
		if c.Language == "" {
			c.Language = DefaultLanguage
		}
		return c, nil

	case TypeTable:
		var c TableContent
		if err := unmarshalInto(raw, &c); err != nil {
			return nil, err
		}
		if c.Width == 0 {
			c.Width = 100
		}
		if c.Headers == nil {
			c.Headers = []string{}
		}
		if c.Rows == nil {
			c.Rows = [][]string{}
		}
		return c, nil

	case TypeSpacer:
		var c SpacerContent
		if err := unmarshalInto(raw, &c); err != nil {
			return nil, err
		}
		if c.Height == 0 {
			c.Height = DefaultSpacerHeight
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown block type %q", t)
}

func unmarshalInto(raw json.RawMessage, dst any) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Document is the persisted content column: {"blocks": [...]}.
type Document struct {
	Blocks List `json:"blocks"`
}

// DecodeDocument parses a stored content document. An empty payload or a
// payload without "blocks" yields an empty list.
func DecodeDocument(data []byte) (List, error) {
	if isNull(data) {
		return List{}, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if doc.Blocks == nil {
		return List{}, nil
	}
	return doc.Blocks, nil
}

// EncodeDocument serializes the whole block list for storage.
func EncodeDocument(l List) ([]byte, error) {
	if l == nil {
		l = List{}
	}
	return json.Marshal(Document{Blocks: l})
}
