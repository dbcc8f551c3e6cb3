package editors

import (
	"fmt"

	"expertene/internal/blocks"
)

// SpacerEditor edits a spacer block's height.
type SpacerEditor struct {
	block   blocks.Block
	content blocks.SpacerContent
}

func (e *SpacerEditor) Block() blocks.Block { return e.block }

func (e *SpacerEditor) Fields() []Field {
	return []Field{{
		Name:  "height",
		Kind:  FieldSlider,
		Value: e.content.Height,
		Min:   blocks.MinSpacerHeight,
		Max:   blocks.MaxSpacerHeight,
		Step:  blocks.SpacerStep,
	}}
}

func (e *SpacerEditor) Apply(field string, value any) (blocks.Content, error) {
	if field != "height" {
		return nil, &UnknownFieldError{Kind: blocks.TypeSpacer, Field: field}
	}
	h, err := asInt(value)
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}
	return blocks.SpacerContent{Height: SnapSpacerHeight(h)}, nil
}

// SnapSpacerHeight clamps h to the slider range and rounds it to the step.
func SnapSpacerHeight(h int) int {
	if h <= blocks.MinSpacerHeight {
		return blocks.MinSpacerHeight
	}
	if h >= blocks.MaxSpacerHeight {
		return blocks.MaxSpacerHeight
	}
	steps := (h - blocks.MinSpacerHeight + blocks.SpacerStep/2) / blocks.SpacerStep
	return blocks.MinSpacerHeight + steps*blocks.SpacerStep
}
