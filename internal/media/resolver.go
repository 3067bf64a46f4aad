// Package media classifies raw media references into playback strategies.
// A reference matching a known streaming-provider pattern becomes an
// embedded source with only coarse start-time control; everything else is
// a direct source the synchronizer fully controls. The classification is
// done once and carried through as a tagged union rather than re-inspected
// ad hoc.
package media

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// ErrNoMedia is returned for an empty reference. A phase with no media
// configured keeps its element idle; it is not a failure.
var ErrNoMedia = errors.New("no media reference")

// Providers for embedded sources.
const (
	ProviderYouTube = "youtube"
	ProviderVimeo   = "vimeo"
)

// Source is the resolved playback strategy for a media reference.
type Source interface {
	// Ref returns the raw reference the source was resolved from.
	Ref() string
}

// Direct is a media reference with full transport control: the
// synchronizer can seek, adjust rate, and mute it continuously.
type Direct struct {
	URL string
}

func (d Direct) Ref() string { return d.URL }

// Embedded is a reference delegated to an external player. The embed URL
// is the only control surface: a start offset in whole seconds plus
// mute/loop/autoplay flags, fixed at creation. Continuous correction is
// not possible; re-triggering rebuilds the URL with a fresh offset.
type Embedded struct {
	Provider     string
	VideoID      string
	EmbedURL     string
	StartSeconds int
}

func (e Embedded) Ref() string { return e.EmbedURL }

var (
	youtubeRe = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|live/)|youtu\.be/)([A-Za-z0-9_-]{6,})`)
	vimeoRe   = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?vimeo\.com/(\d+)`)
)

// Resolve classifies ref and computes provider init parameters. elapsed is
// how far into the clip playback should start; muted and loop become
// provider flags for embedded sources and are applied by the caller for
// direct ones.
func Resolve(ref string, elapsed time.Duration, muted, loop bool) (Source, error) {
	if ref == "" {
		return nil, ErrNoMedia
	}

	start := int(elapsed.Seconds())
	if start < 0 {
		start = 0
	}

	if m := youtubeRe.FindStringSubmatch(ref); m != nil {
		return youtubeEmbed(m[1], start, muted, loop), nil
	}
	if m := vimeoRe.FindStringSubmatch(ref); m != nil {
		return vimeoEmbed(m[1], start, muted, loop), nil
	}
	return Direct{URL: ref}, nil
}

func youtubeEmbed(videoID string, start int, muted, loop bool) Embedded {
	q := url.Values{}
	q.Set("autoplay", "1")
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("controls", "0")
	q.Set("playsinline", "1")
	q.Set("rel", "0")
	if muted {
		q.Set("mute", "1")
	}
	if loop {
		q.Set("loop", "1")
		// YouTube only loops single videos presented as a playlist.
		q.Set("playlist", videoID)
	}
	return Embedded{
		Provider:     ProviderYouTube,
		VideoID:      videoID,
		EmbedURL:     fmt.Sprintf("https://www.youtube.com/embed/%s?%s", videoID, q.Encode()),
		StartSeconds: start,
	}
}

func vimeoEmbed(videoID string, start int, muted, loop bool) Embedded {
	q := url.Values{}
	q.Set("autoplay", "1")
	q.Set("controls", "0")
	if muted {
		q.Set("muted", "1")
	}
	if loop {
		q.Set("loop", "1")
	}
	// Vimeo takes the start position as a fragment, not a query param.
	embed := fmt.Sprintf("https://player.vimeo.com/video/%s?%s#t=%ds", videoID, q.Encode(), start)
	return Embedded{
		Provider:     ProviderVimeo,
		VideoID:      videoID,
		EmbedURL:     embed,
		StartSeconds: start,
	}
}
