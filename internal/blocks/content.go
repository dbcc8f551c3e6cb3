package blocks

import (
	"fmt"
	"math"
)

// TextContent is a single rich-text HTML fragment.
type TextContent struct {
	HTML string
}

func (TextContent) Kind() Type { return TypeText }
func (TextContent) validate() error { return nil }

// SidePosition places the side text of an image block.
type SidePosition string

const (
	SideLeft  SidePosition = "left"
	SideRight SidePosition = "right"
)

// ImageWidths are the only widths, in percent, an image block may take.
var ImageWidths = []int{25, 50, 75, 100}

// ImageContent describes an image block.
type ImageContent struct {
	URL             string       `json:"url"`
	Alt             string       `json:"alt"`
	Caption         string       `json:"caption"`
	Width           int          `json:"width"`
	SideTextEnabled bool         `json:"sideTextEnabled"`
	SideText        string       `json:"sideText"`
	SidePosition    SidePosition `json:"sidePosition"`
}

func (ImageContent) Kind() Type { return TypeImage }

func (c ImageContent) validate() error {
	valid := false
	for _, w := range ImageWidths {
		if c.Width == w {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("image width %d is not one of %v", c.Width, ImageWidths)
	}
	if c.SidePosition != SideLeft && c.SidePosition != SideRight {
		return fmt.Errorf("invalid side position %q", c.SidePosition)
	}
	return nil
}

// VideoContent stores the URL as entered; embed resolution happens at render time.
type VideoContent struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

func (VideoContent) Kind() Type { return TypeVideo }
func (VideoContent) validate() error { return nil }

// DefaultLanguage is the language a new code block starts with.
const DefaultLanguage = "javascript"

// Languages is the fixed set of code block languages.
var Languages = []string{
	"javascript", "typescript", "python", "java", "c", "cpp",
	"csharp", "go", "rust", "ruby", "php", "swift",
	"kotlin", "scala", "dart", "r", "sql", "bash",
	"html", "css", "json", "yaml", "markdown", "plaintext",
}

// IsLanguage reports whether lang is in Languages.
func IsLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// CodeContent is a snippet with its language and an optional badge label.
type CodeContent struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Label    string `json:"label,omitempty"`
}

func (CodeContent) Kind() Type { return TypeCode }

func (c CodeContent) validate() error {
	if !IsLanguage(c.Language) {
		return fmt.Errorf("unknown code language %q", c.Language)
	}
	return nil
}

// Badge is the display name shown above the snippet.
func (c CodeContent) Badge() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Language
}

// MinColumnWidth is the narrowest a table column may be resized to, in percent.
const MinColumnWidth = 8.0

// TableContent is a header row plus a grid of string cells.
type TableContent struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	Width     int        `json:"width"`
	ColWidths []float64  `json:"colWidths,omitempty"`
}

func (TableContent) Kind() Type { return TypeTable }

func (c TableContent) validate() error {
	for i, row := range c.Rows {
		if len(row) != len(c.Headers) {
			return fmt.Errorf("table row %d has %d cells, want %d", i, len(row), len(c.Headers))
		}
	}
	if len(c.ColWidths) > 0 {
		if len(c.ColWidths) != len(c.Headers) {
			return fmt.Errorf("table has %d column widths for %d columns", len(c.ColWidths), len(c.Headers))
		}
		sum := 0.0
		for _, w := range c.ColWidths {
			sum += w
		}
		if math.Abs(sum-100) > 1 {
			return fmt.Errorf("table column widths sum to %.2f", sum)
		}
	}
	return nil
}

// Columns returns the column count.
func (c TableContent) Columns() int {
	return len(c.Headers)
}

// Clone deep-copies the table so edits never alias the original.
func (c TableContent) Clone() TableContent {
	out := TableContent{Width: c.Width}
	out.Headers = append([]string(nil), c.Headers...)
	out.Rows = make([][]string, len(c.Rows))
	for i, row := range c.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	if c.ColWidths != nil {
		out.ColWidths = append([]float64(nil), c.ColWidths...)
	}
	return out
}

// EffectiveColWidths returns the persisted widths, or equal shares when none
// were stored.
func (c TableContent) EffectiveColWidths() []float64 {
	if len(c.ColWidths) == len(c.Headers) && len(c.ColWidths) > 0 {
		return append([]float64(nil), c.ColWidths...)
	}
	return EqualShares(len(c.Headers))
}

// EqualShares splits 100 percent into n equal widths.
func EqualShares(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 / float64(n)
	}
	return out
}

// Spacer bounds, in pixels.
const (
	MinSpacerHeight     = 8
	MaxSpacerHeight     = 128
	SpacerStep          = 4
	DefaultSpacerHeight = 24
)

// SpacerContent is vertical whitespace.
type SpacerContent struct {
	Height int `json:"height"`
}

func (SpacerContent) Kind() Type { return TypeSpacer }

func (c SpacerContent) validate() error {
	if c.Height < MinSpacerHeight || c.Height > MaxSpacerHeight {
		return fmt.Errorf("spacer height %d outside %d-%d", c.Height, MinSpacerHeight, MaxSpacerHeight)
	}
	return nil
}
