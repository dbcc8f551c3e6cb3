package editors

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"expertene/internal/blocks"
)

// VideoEditor edits a video block.
type VideoEditor struct {
	block   blocks.Block
	content blocks.VideoContent
}

func (e *VideoEditor) Block() blocks.Block { return e.block }

func (e *VideoEditor) Fields() []Field {
	return []Field{
		{Name: "url", Kind: FieldURL, Value: e.content.URL},
		{Name: "caption", Kind: FieldText, Value: e.content.Caption},
	}
}

func (e *VideoEditor) Apply(field string, value any) (blocks.Content, error) {
	c := e.content
	s, err := asString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	switch field {
	case "url":
		s = strings.TrimSpace(s)
		if s != "" {
			if err := ValidateVideoURL(s); err != nil {
				return nil, err
			}
		}
		c.URL = s
	case "caption":
		c.Caption = s
	default:
		return nil, &UnknownFieldError{Kind: blocks.TypeVideo, Field: field}
	}
	return c, nil
}

// EmbedKind is how a video URL is rendered.
type EmbedKind string

const (
	EmbedYouTube EmbedKind = "youtube"
	EmbedVimeo   EmbedKind = "vimeo"
	EmbedNative  EmbedKind = "native"
)

// Embed is the render-time resolution of a stored video URL.
type Embed struct {
	Kind    EmbedKind `json:"kind"`
	URL     string    `json:"url"`
	VideoID string    `json:"video_id,omitempty"`
}

var (
	youTubePattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|shorts/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})`)
	vimeoPattern   = regexp.MustCompile(`^(?:https?://)?(?:www\.|player\.)?vimeo\.com/(?:video/|channels/[^/]+/|groups/[^/]+/videos/)?(\d+)`)
)

// DirectVideoExtensions are the file types played in a native element.
var DirectVideoExtensions = []string{".mp4", ".webm", ".ogg"}

func youTubeID(raw string) string {
	if m := youTubePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func vimeoID(raw string) string {
	if m := vimeoPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func isDirectVideo(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, allowed := range DirectVideoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ValidateVideoURL accepts YouTube and Vimeo links and direct media files.
func ValidateVideoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if youTubeID(raw) != "" || vimeoID(raw) != "" || isDirectVideo(raw) {
		return nil
	}
	return fmt.Errorf("unsupported video url %q: use a YouTube or Vimeo link or a .mp4, .webm or .ogg file", raw)
}

// ResolveEmbed rewrites provider links to their embed player URL. Anything
// else is played natively as-is.
func ResolveEmbed(raw string) Embed {
	raw = strings.TrimSpace(raw)
	if id := youTubeID(raw); id != "" {
		return Embed{Kind: EmbedYouTube, URL: "https://www.youtube.com/embed/" + id, VideoID: id}
	}
	if id := vimeoID(raw); id != "" {
		return Embed{Kind: EmbedVimeo, URL: "https://player.vimeo.com/video/" + id, VideoID: id}
	}
	return Embed{Kind: EmbedNative, URL: raw}
}
