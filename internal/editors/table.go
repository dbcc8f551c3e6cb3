package editors

import (
	"fmt"
	"math"

	"expertene/internal/blocks"
)

// TableEditor edits a table block. Structural operations go through Apply
// with an object value, e.g. Apply("add_column", {"at": 1}).
type TableEditor struct {
	block   blocks.Block
	content blocks.TableContent
}

func (e *TableEditor) Block() blocks.Block { return e.block }

func (e *TableEditor) Fields() []Field {
	c := e.content
	return []Field{
		{Name: "grid", Kind: FieldGrid, Value: map[string]any{
			"headers":   c.Headers,
			"rows":      c.Rows,
			"colWidths": c.EffectiveColWidths(),
		}},
		{Name: "width", Kind: FieldSlider, Value: c.Width, Min: 25, Max: 100, Step: 1},
	}
}

func (e *TableEditor) Apply(field string, value any) (blocks.Content, error) {
	c := e.content

	if field == "width" {
		w, err := asInt(value)
		if err != nil {
			return nil, fmt.Errorf("width: %w", err)
		}
		c = c.Clone()
		c.Width = clampInt(w, 25, 100)
		return c, nil
	}

	switch field {
	case "header", "cell", "add_row", "remove_row", "add_column", "remove_column", "move_row", "move_column", "resize":
	default:
		return nil, &UnknownFieldError{Kind: blocks.TypeTable, Field: field}
	}

	args, err := asMap(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	num := func(key string) (int, error) {
		v, ok := args[key]
		if !ok {
			return 0, fmt.Errorf("%s: missing %q", field, key)
		}
		return asInt(v)
	}
	text := func() (string, error) { return asString(args["text"]) }

	switch field {
	case "header":
		col, err := num("col")
		if err != nil {
			return nil, err
		}
		s, err := text()
		if err != nil {
			return nil, err
		}
		return SetHeader(c, col, s)
	case "cell":
		row, err := num("row")
		if err != nil {
			return nil, err
		}
		col, err := num("col")
		if err != nil {
			return nil, err
		}
		s, err := text()
		if err != nil {
			return nil, err
		}
		return SetCell(c, row, col, s)
	case "add_row":
		at, err := num("at")
		if err != nil {
			at = len(c.Rows)
		}
		return AddRow(c, at), nil
	case "remove_row":
		row, err := num("row")
		if err != nil {
			return nil, err
		}
		return RemoveRow(c, row), nil
	case "add_column":
		at, err := num("at")
		if err != nil {
			at = c.Columns()
		}
		return AddColumn(c, at), nil
	case "remove_column":
		col, err := num("col")
		if err != nil {
			return nil, err
		}
		return RemoveColumn(c, col), nil
	case "move_row", "move_column":
		idx, err := num("index")
		if err != nil {
			return nil, err
		}
		dir, err := direction(args["direction"])
		if err != nil {
			return nil, err
		}
		if field == "move_row" {
			return MoveRow(c, idx, dir), nil
		}
		return MoveColumn(c, idx, dir), nil
	case "resize":
		left, err := num("left")
		if err != nil {
			return nil, err
		}
		delta, err := asFloat(args["delta"])
		if err != nil {
			return nil, fmt.Errorf("resize: delta: %w", err)
		}
		return ResizeColumns(c, left, delta), nil
	}
	return c, nil
}

func direction(v any) (blocks.Direction, error) {
	s, err := asString(v)
	if err != nil {
		return 0, err
	}
	switch s {
	case "up", "left":
		return blocks.Up, nil
	case "down", "right":
		return blocks.Down, nil
	}
	return 0, fmt.Errorf("direction must be up, down, left or right")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetHeader renames a column.
func SetHeader(c blocks.TableContent, col int, text string) (blocks.TableContent, error) {
	if col < 0 || col >= c.Columns() {
		return c, fmt.Errorf("column %d out of range", col)
	}
	out := c.Clone()
	out.Headers[col] = text
	return out, nil
}

// SetCell writes one cell.
func SetCell(c blocks.TableContent, row, col int, text string) (blocks.TableContent, error) {
	if row < 0 || row >= len(c.Rows) || col < 0 || col >= c.Columns() {
		return c, fmt.Errorf("cell %d,%d out of range", row, col)
	}
	out := squared(c)
	out.Rows[row][col] = text
	return out, nil
}

// AddRow inserts an empty row at position at.
func AddRow(c blocks.TableContent, at int) blocks.TableContent {
	out := c.Clone()
	at = clampInt(at, 0, len(out.Rows))
	row := make([]string, out.Columns())
	out.Rows = append(out.Rows[:at], append([][]string{row}, out.Rows[at:]...)...)
	return out
}

// RemoveRow deletes a row; out-of-range indexes are ignored.
func RemoveRow(c blocks.TableContent, row int) blocks.TableContent {
	if row < 0 || row >= len(c.Rows) {
		return c
	}
	out := c.Clone()
	out.Rows = append(out.Rows[:row], out.Rows[row+1:]...)
	return out
}

// AddColumn inserts an empty column at position at and resets the column
// widths to equal shares.
func AddColumn(c blocks.TableContent, at int) blocks.TableContent {
	out := squared(c)
	at = clampInt(at, 0, out.Columns())
	out.Headers = insertString(out.Headers, at, fmt.Sprintf("Column %d", out.Columns()+1))
	for i := range out.Rows {
		out.Rows[i] = insertString(out.Rows[i], at, "")
	}
	out.ColWidths = blocks.EqualShares(out.Columns())
	return out
}

// RemoveColumn deletes a column and resets the column widths to equal shares.
func RemoveColumn(c blocks.TableContent, col int) blocks.TableContent {
	if col < 0 || col >= c.Columns() {
		return c
	}
	out := squared(c)
	out.Headers = append(out.Headers[:col], out.Headers[col+1:]...)
	for i := range out.Rows {
		out.Rows[i] = append(out.Rows[i][:col], out.Rows[i][col+1:]...)
	}
	out.ColWidths = blocks.EqualShares(out.Columns())
	return out
}

// MoveRow swaps a row with its neighbour.
func MoveRow(c blocks.TableContent, row int, dir blocks.Direction) blocks.TableContent {
	other := row - 1
	if dir == blocks.Down {
		other = row + 1
	}
	if row < 0 || other < 0 || row >= len(c.Rows) || other >= len(c.Rows) {
		return c
	}
	out := c.Clone()
	out.Rows[row], out.Rows[other] = out.Rows[other], out.Rows[row]
	return out
}

// MoveColumn swaps a column, with its cells and width, with its neighbour.
func MoveColumn(c blocks.TableContent, col int, dir blocks.Direction) blocks.TableContent {
	other := col - 1
	if dir == blocks.Down {
		other = col + 1
	}
	n := c.Columns()
	if col < 0 || other < 0 || col >= n || other >= n {
		return c
	}
	out := squared(c)
	out.Headers[col], out.Headers[other] = out.Headers[other], out.Headers[col]
	for i := range out.Rows {
		out.Rows[i][col], out.Rows[i][other] = out.Rows[i][other], out.Rows[i][col]
	}
	if len(out.ColWidths) == n {
		out.ColWidths[col], out.ColWidths[other] = out.ColWidths[other], out.ColWidths[col]
	}
	return out
}

// ResizeColumns moves the boundary between column left and left+1 by delta
// percentage points. Each side stays at or above blocks.MinColumnWidth and
// the pair's combined width never changes. When the pair cannot hold two
// minimum-width columns the call is a no-op.
func ResizeColumns(c blocks.TableContent, left int, delta float64) blocks.TableContent {
	n := c.Columns()
	if left < 0 || left+1 >= n || delta == 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return c
	}
	widths := c.EffectiveColWidths()
	a, b := widths[left], widths[left+1]
	total := a + b
	if total < 2*blocks.MinColumnWidth {
		return c
	}

	na := math.Max(a+delta, blocks.MinColumnWidth)
	nb := total - na
	if nb < blocks.MinColumnWidth {
		nb = blocks.MinColumnWidth
		na = total - nb
	}

	out := c.Clone()
	out.ColWidths = widths
	out.ColWidths[left], out.ColWidths[left+1] = na, nb
	return out
}

// ResizeColumnsByPixels converts a pointer delta in pixels against the
// rendered table width and applies ResizeColumns.
func ResizeColumnsByPixels(c blocks.TableContent, left int, deltaPx, tableWidthPx float64) blocks.TableContent {
	if tableWidthPx <= 0 {
		return c
	}
	return ResizeColumns(c, left, deltaPx/tableWidthPx*100)
}

// squared clones the table with every row padded or cut to the header count.
func squared(c blocks.TableContent) blocks.TableContent {
	out := c.Clone()
	n := out.Columns()
	for i, row := range out.Rows {
		switch {
		case len(row) < n:
			out.Rows[i] = append(row, make([]string, n-len(row))...)
		case len(row) > n:
			out.Rows[i] = row[:n]
		}
	}
	return out
}

func insertString(s []string, at int, v string) []string {
	at = clampInt(at, 0, len(s))
	s = append(s, "")
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}
