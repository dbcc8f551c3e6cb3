// Package render projects a persisted block list onto article HTML.
package render

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"expertene/internal/blocks"
	"expertene/internal/editors"
)

// Options tunes the projection.
type Options struct {
	// CollapseLines folds code blocks longer than this many lines. Zero
	// disables folding.
	CollapseLines int
	// ProfilePath prefixes mention links, e.g. "/u/".
	ProfilePath string
}

// DefaultOptions returns the options used by the article view.
func DefaultOptions() Options {
	return Options{CollapseLines: 30, ProfilePath: "/u/"}
}

const divider = `<hr class="block-divider">`

// Blocks renders the whole list. A divider separates two adjacent
// non-spacer blocks; a spacer suppresses the divider on both of its sides.
// Blocks that render to nothing, such as media without a URL, are skipped.
func Blocks(list blocks.List, opts Options) template.HTML {
	r := renderer{opts: opts}
	var buf strings.Builder
	var prev *blocks.Block
	for i, b := range list {
		out := blocks.Visit[string](b, r)
		if out == "" {
			continue
		}
		if prev != nil && b.Type != blocks.TypeSpacer && prev.Type != blocks.TypeSpacer {
			buf.WriteString(divider)
		}
		buf.WriteString(out)
		prev = &list[i]
	}
	return template.HTML(buf.String())
}

// Block renders a single block, as the editor preview does.
func Block(b blocks.Block, opts Options) template.HTML {
	return template.HTML(blocks.Visit[string](b, renderer{opts: opts}))
}

type renderer struct {
	opts Options
}

// safeURL accepts http(s) and scheme-less URLs for media sources.
func safeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return true
	}
	return false
}

func blockOpen(b blocks.Block, class string) string {
	return `<div class="block block-` + string(b.Type) + class + `" data-block-id="` + html.EscapeString(b.ID) + `">`
}

func (r renderer) VisitText(b blocks.Block, c blocks.TextContent) string {
	return blockOpen(b, "") + RichText(c.HTML, r.opts.ProfilePath) + `</div>`
}

func (r renderer) VisitImage(b blocks.Block, c blocks.ImageContent) string {
	if !safeURL(c.URL) {
		return ""
	}
	var fig strings.Builder
	fig.WriteString(`<figure style="width:` + strconv.Itoa(c.Width) + `%">`)
	fig.WriteString(`<img src="` + html.EscapeString(c.URL) + `" alt="` + html.EscapeString(c.Alt) + `" loading="lazy">`)
	if c.Caption != "" {
		fig.WriteString(`<figcaption>` + html.EscapeString(c.Caption) + `</figcaption>`)
	}
	fig.WriteString(`</figure>`)

	if !c.SideTextEnabled {
		return blockOpen(b, "") + fig.String() + `</div>`
	}

	side := `<div class="side-text">` + RichText(c.SideText, r.opts.ProfilePath) + `</div>`
	var buf strings.Builder
	buf.WriteString(blockOpen(b, " side-"+string(c.SidePosition)))
	buf.WriteString(`<div class="two-column">`)
	if c.SidePosition == blocks.SideLeft {
		buf.WriteString(side + fig.String())
	} else {
		buf.WriteString(fig.String() + side)
	}
	buf.WriteString(`</div></div>`)
	return buf.String()
}

func (r renderer) VisitVideo(b blocks.Block, c blocks.VideoContent) string {
	if !safeURL(c.URL) {
		return ""
	}
	embed := editors.ResolveEmbed(c.URL)

	var buf strings.Builder
	buf.WriteString(blockOpen(b, ""))
	switch embed.Kind {
	case editors.EmbedYouTube, editors.EmbedVimeo:
		buf.WriteString(`<div class="video-frame"><iframe src="` + html.EscapeString(embed.URL) +
			`" frameborder="0" allow="autoplay; fullscreen; picture-in-picture" allowfullscreen></iframe></div>`)
	default:
		buf.WriteString(`<video controls preload="metadata" src="` + html.EscapeString(embed.URL) + `"></video>`)
	}
	if c.Caption != "" {
		buf.WriteString(`<p class="caption">` + html.EscapeString(c.Caption) + `</p>`)
	}
	buf.WriteString(`</div>`)
	return buf.String()
}

func (r renderer) VisitCode(b blocks.Block, c blocks.CodeContent) string {
	lines := strings.Count(c.Code, "\n") + 1
	collapsed := r.opts.CollapseLines > 0 && lines > r.opts.CollapseLines

	class := ""
	if collapsed {
		class = " collapsed"
	}

	var buf strings.Builder
	buf.WriteString(blockOpen(b, class))
	buf.WriteString(`<div class="code-badge">` + html.EscapeString(c.Badge()) + `</div>`)
	buf.WriteString(`<pre><code class="language-` + html.EscapeString(c.Language) + `">`)
	buf.WriteString(html.EscapeString(c.Code))
	buf.WriteString(`</code></pre>`)
	if collapsed {
		buf.WriteString(fmt.Sprintf(`<button class="code-expand" type="button">Show all %d lines</button>`, lines))
	}
	buf.WriteString(`</div>`)
	return buf.String()
}

func (r renderer) VisitTable(b blocks.Block, c blocks.TableContent) string {
	if c.Columns() == 0 {
		return ""
	}
	width := c.Width
	if width <= 0 {
		width = 100
	}

	var buf strings.Builder
	buf.WriteString(blockOpen(b, ""))
	buf.WriteString(`<table style="width:` + strconv.Itoa(width) + `%"><colgroup>`)
	for _, w := range c.EffectiveColWidths() {
		buf.WriteString(`<col style="width:` + strconv.FormatFloat(w, 'f', 2, 64) + `%">`)
	}
	buf.WriteString(`</colgroup><thead><tr>`)
	for _, h := range c.Headers {
		buf.WriteString(`<th>` + html.EscapeString(h) + `</th>`)
	}
	buf.WriteString(`</tr></thead><tbody>`)
	for _, row := range c.Rows {
		buf.WriteString(`<tr>`)
		for _, cell := range row {
			buf.WriteString(`<td>` + html.EscapeString(cell) + `</td>`)
		}
		buf.WriteString(`</tr>`)
	}
	buf.WriteString(`</tbody></table></div>`)
	return buf.String()
}

func (r renderer) VisitSpacer(b blocks.Block, c blocks.SpacerContent) string {
	return `<div class="block block-spacer" aria-hidden="true" style="height:` + strconv.Itoa(c.Height) + `px"></div>`
}

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	mentionPattern = regexp.MustCompile(`(^|[^\w@])@([\p{L}\p{N}_]+)`)
)

// ugc is safe for concurrent use once built.
var ugc = bluemonday.UGCPolicy()

// RichText sanitizes a stored rich-text fragment against the user content
// allow-list and turns @name runs that are not already inside a link into
// profile links.
func RichText(fragment, profilePath string) string {
	fragment = ugc.Sanitize(fragment)
	if profilePath == "" {
		return fragment
	}

	var buf strings.Builder
	inLink := 0
	last := 0
	for _, loc := range tagPattern.FindAllStringIndex(fragment, -1) {
		text := fragment[last:loc[0]]
		if inLink == 0 {
			text = linkMentions(text, profilePath)
		}
		buf.WriteString(text)

		tag := strings.ToLower(fragment[loc[0]:loc[1]])
		switch {
		case strings.HasPrefix(tag, "<a ") || tag == "<a>":
			inLink++
		case strings.HasPrefix(tag, "</a") && inLink > 0:
			inLink--
		}
		buf.WriteString(fragment[loc[0]:loc[1]])
		last = loc[1]
	}
	tail := fragment[last:]
	if inLink == 0 {
		tail = linkMentions(tail, profilePath)
	}
	buf.WriteString(tail)
	return buf.String()
}

func linkMentions(text, profilePath string) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := mentionPattern.FindStringSubmatch(m)
		return sub[1] + `<a class="mention" href="` + profilePath + sub[2] + `">@` + sub[2] + `</a>`
	})
}
