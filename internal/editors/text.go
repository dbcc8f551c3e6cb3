package editors

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"expertene/internal/blocks"
)

// MentionLimit caps the suggestions offered for an @mention.
const MentionLimit = 6

// TextEditor edits a rich-text block.
type TextEditor struct {
	block   blocks.Block
	content blocks.TextContent
}

func (e *TextEditor) Block() blocks.Block { return e.block }

func (e *TextEditor) Fields() []Field {
	return []Field{{Name: "html", Kind: FieldRichText, Value: e.content.HTML}}
}

func (e *TextEditor) Apply(field string, value any) (blocks.Content, error) {
	if field != "html" {
		return nil, &UnknownFieldError{Kind: blocks.TypeText, Field: field}
	}
	s, err := asString(value)
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}
	return blocks.TextContent{HTML: s}, nil
}

// UserDirectory answers username prefix lookups.
type UserDirectory interface {
	SuggestUsernames(ctx context.Context, prefix string, limit int) ([]string, error)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// DetectMention reports whether the caret (a byte offset into text) sits
// right after "@" plus a run of word characters. It returns the run as the
// query and the offset of the "@".
func DetectMention(text string, caret int) (query string, start int, ok bool) {
	if caret < 0 || caret > len(text) {
		return "", 0, false
	}
	i := caret
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if !isWordRune(r) {
			break
		}
		i -= size
	}
	if i == 0 || text[i-1] != '@' {
		return "", 0, false
	}
	return text[i:caret], i - 1, true
}

// CompleteMention replaces text[start:caret] with "@username " and returns
// the new text and the caret position after the inserted space.
func CompleteMention(text string, start, caret int, username string) (string, int) {
	if start < 0 || caret > len(text) || start > caret {
		return text, caret
	}
	insert := "@" + username + " "
	return text[:start] + insert + text[caret:], start + len(insert)
}

// SuggestMentions runs the prefix lookup for the mention under the caret.
// It returns nil when the caret is not inside a mention.
func SuggestMentions(ctx context.Context, dir UserDirectory, text string, caret int) ([]string, error) {
	query, _, ok := DetectMention(text, caret)
	if !ok {
		return nil, nil
	}
	return dir.SuggestUsernames(ctx, strings.ToLower(query), MentionLimit)
}

// Selection is a byte range inside a rich-text fragment. Start == End means
// no selection, only a caret.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NormalizeLinkURL accepts http, https and mailto links; a bare host gets https.
func NormalizeLinkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("link url is required")
	}
	if !strings.Contains(raw, ":") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid link url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("link url has no host")
		}
	case "mailto":
	default:
		return "", fmt.Errorf("unsupported link scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// InsertLink formats a link. Without a selection, display is inserted at
// the caret and exactly that span becomes the link. With a selection, the
// selected span is wrapped and display is ignored.
func InsertLink(fragment string, sel Selection, rawURL, display string) (string, error) {
	href, err := NormalizeLinkURL(rawURL)
	if err != nil {
		return "", err
	}
	if sel.Start < 0 || sel.End > len(fragment) || sel.Start > sel.End {
		return "", fmt.Errorf("selection %d-%d outside text of length %d", sel.Start, sel.End, len(fragment))
	}

	open := `<a href="` + html.EscapeString(href) + `">`
	if sel.Start == sel.End {
		if strings.TrimSpace(display) == "" {
			return "", fmt.Errorf("link text is required")
		}
		return fragment[:sel.Start] + open + html.EscapeString(display) + "</a>" + fragment[sel.Start:], nil
	}
	return fragment[:sel.Start] + open + fragment[sel.Start:sel.End] + "</a>" + fragment[sel.End:], nil
}
