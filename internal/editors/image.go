package editors

import (
	"fmt"

	"expertene/internal/blocks"
)

// ImageEditor edits an image block.
type ImageEditor struct {
	block   blocks.Block
	content blocks.ImageContent
}

func (e *ImageEditor) Block() blocks.Block { return e.block }

func (e *ImageEditor) Fields() []Field {
	c := e.content
	return []Field{
		{Name: "url", Kind: FieldURL, Value: c.URL},
		{Name: "alt", Kind: FieldText, Value: c.Alt},
		{Name: "caption", Kind: FieldText, Value: c.Caption},
		{Name: "width", Kind: FieldSlider, Value: c.Width, Min: 25, Max: 100, Step: 25},
		{Name: "sideTextEnabled", Kind: FieldBool, Value: c.SideTextEnabled},
		{Name: "sideText", Kind: FieldRichText, Value: c.SideText},
		{Name: "sidePosition", Kind: FieldSelect, Value: string(c.SidePosition), Options: []string{string(blocks.SideLeft), string(blocks.SideRight)}},
	}
}

func (e *ImageEditor) Apply(field string, value any) (blocks.Content, error) {
	c := e.content
	var err error
	switch field {
	case "url":
		c.URL, err = asString(value)
	case "alt":
		c.Alt, err = asString(value)
	case "caption":
		c.Caption, err = asString(value)
	case "sideText":
		c.SideText, err = asString(value)
	case "sideTextEnabled":
		c.SideTextEnabled, err = asBool(value)
	case "width":
		var w int
		if w, err = asInt(value); err == nil {
			c.Width = SnapImageWidth(w)
		}
	case "sidePosition":
		var p string
		if p, err = asString(value); err == nil {
			switch blocks.SidePosition(p) {
			case blocks.SideLeft, blocks.SideRight:
				c.SidePosition = blocks.SidePosition(p)
			default:
				err = fmt.Errorf("must be left or right")
			}
		}
	default:
		return nil, &UnknownFieldError{Kind: blocks.TypeImage, Field: field}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return c, nil
}

// SnapImageWidth maps any percentage onto the nearest allowed image width.
func SnapImageWidth(w int) int {
	best := blocks.ImageWidths[0]
	for _, allowed := range blocks.ImageWidths {
		if abs(w-allowed) < abs(w-best) {
			best = allowed
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
