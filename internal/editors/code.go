package editors

import (
	"fmt"

	"expertene/internal/blocks"
)

// CodeEditor edits a code block. The preview uses the same renderer as the
// published view.
type CodeEditor struct {
	block   blocks.Block
	content blocks.CodeContent
}

func (e *CodeEditor) Block() blocks.Block { return e.block }

func (e *CodeEditor) Fields() []Field {
	return []Field{
		{Name: "code", Kind: FieldCode, Value: e.content.Code},
		{Name: "language", Kind: FieldSelect, Value: e.content.Language, Options: blocks.Languages},
		{Name: "label", Kind: FieldText, Value: e.content.Label},
	}
}

func (e *CodeEditor) Apply(field string, value any) (blocks.Content, error) {
	c := e.content
	s, err := asString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	switch field {
	case "code":
		c.Code = s
	case "label":
		c.Label = s
	case "language":
		if s == "" {
			s = blocks.DefaultLanguage
		}
		if !blocks.IsLanguage(s) {
			return nil, fmt.Errorf("language: unknown language %q", s)
		}
		c.Language = s
	default:
		return nil, &UnknownFieldError{Kind: blocks.TypeCode, Field: field}
	}
	return c, nil
}
