// Package blocks holds the typed block model that makes up a document's
// content and the ordered store through which a document in edit is
// mutated.
package blocks

import (
	"fmt"

	"github.com/google/uuid"
)

// Type identifies the kind of a block. It is fixed when the block is created.
type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeVideo  Type = "video"
	TypeCode   Type = "code"
	TypeTable  Type = "table"
	TypeSpacer Type = "spacer"
)

// AllTypes lists the block kinds in the order the editor's insert menu shows them.
var AllTypes = []Type{TypeText, TypeImage, TypeVideo, TypeCode, TypeTable, TypeSpacer}

// ParseType converts a wire value into a Type.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown block type %q", s)
}

// Content is the type-specific payload of a block. The set of
// implementations is closed: only the six content structs in this package
// satisfy it.
type Content interface {
	Kind() Type
	validate() error
}

// Block is the atomic content unit of a document.
type Block struct {
	ID      string  `json:"id"`
	Type    Type    `json:"type"`
	Content Content `json:"content"`
}

// NewID returns a fresh block identifier.
func NewID() string {
	return uuid.NewString()
}

// New builds a block of the given kind with a fresh id and default content.
func New(t Type) Block {
	return Block{ID: NewID(), Type: t, Content: DefaultContent(t)}
}

// DefaultContent returns the payload a freshly inserted block starts with.
func DefaultContent(t Type) Content {
	switch t {
	case TypeText:
		return TextContent{}
	case TypeImage:
		return ImageContent{Width: 100, SidePosition: SideRight}
	case TypeVideo:
		return VideoContent{}
	case TypeCode:
		return CodeContent{Language: DefaultLanguage}
	case TypeTable:
		return TableContent{
			Headers:   []string{"Column 1", "Column 2"},
			Rows:      [][]string{{"", ""}},
			Width:     100,
			ColWidths: []float64{50, 50},
		}
	case TypeSpacer:
		return SpacerContent{Height: DefaultSpacerHeight}
	}
	return nil
}

// Validate checks that the block's content agrees with its type and that
// the content satisfies its own invariants.
func (b Block) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("block id is required")
	}
	if _, err := ParseType(string(b.Type)); err != nil {
		return err
	}
	if b.Content == nil {
		return fmt.Errorf("block %s: content is required", b.ID)
	}
	if b.Content.Kind() != b.Type {
		return fmt.Errorf("block %s: %s content on a %s block", b.ID, b.Content.Kind(), b.Type)
	}
	if err := b.Content.validate(); err != nil {
		return fmt.Errorf("block %s: %w", b.ID, err)
	}
	return nil
}

// List is the ordered block sequence persisted as content.blocks.
type List []Block

// Validate checks every block and that ids are unique.
func (l List) Validate() error {
	seen := make(map[string]struct{}, len(l))
	for _, b := range l {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("duplicate block id %s", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

// Visitor has one method per block kind. Implementations are forced by the
// compiler to handle every kind.
type Visitor[T any] interface {
	VisitText(b Block, c TextContent) T
	VisitImage(b Block, c ImageContent) T
	VisitVideo(b Block, c VideoContent) T
	VisitCode(b Block, c CodeContent) T
	VisitTable(b Block, c TableContent) T
	VisitSpacer(b Block, c SpacerContent) T
}

// Visit dispatches b to the matching visitor method.
func Visit[T any](b Block, v Visitor[T]) T {
	switch c := b.Content.(type) {
	case TextContent:
		return v.VisitText(b, c)
	case ImageContent:
		return v.VisitImage(b, c)
	case VideoContent:
		return v.VisitVideo(b, c)
	case CodeContent:
		return v.VisitCode(b, c)
	case TableContent:
		return v.VisitTable(b, c)
	case SpacerContent:
		return v.VisitSpacer(b, c)
	}
	panic(fmt.Sprintf("blocks: unhandled content %T", b.Content))
}
