package media

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestResolveClassification(t *testing.T) {
	tests := []struct {
		name         string
		ref          string
		wantProvider string // "" means direct
		wantVideoID  string
	}{
		{
			name: "plain mp4 is direct",
			ref:  "https://example.com/clip.mp4",
		},
		{
			name: "relative file path is direct",
			ref:  "media/countdown.webm",
		},
		{
			name: "hls playlist is direct",
			ref:  "https://cdn.example.com/live/stream.m3u8",
		},
		{
			name:         "youtu.be short link",
			ref:          "https://youtu.be/dQw4w9WgXcQ",
			wantProvider: ProviderYouTube,
			wantVideoID:  "dQw4w9WgXcQ",
		},
		{
			name:         "youtube watch URL",
			ref:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantProvider: ProviderYouTube,
			wantVideoID:  "dQw4w9WgXcQ",
		},
		{
			name:         "youtube shorts URL",
			ref:          "https://youtube.com/shorts/dQw4w9WgXcQ",
			wantProvider: ProviderYouTube,
			wantVideoID:  "dQw4w9WgXcQ",
		},
		{
			name:         "vimeo URL",
			ref:          "https://vimeo.com/76979871",
			wantProvider: ProviderVimeo,
			wantVideoID:  "76979871",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Resolve(tt.ref, 0, true, false)
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", tt.ref, err)
			}
			if tt.wantProvider == "" {
				direct, ok := src.(Direct)
				if !ok {
					t.Fatalf("expected Direct, got %T", src)
				}
				if direct.URL != tt.ref {
					t.Errorf("expected URL %q, got %q", tt.ref, direct.URL)
				}
				return
			}
			embedded, ok := src.(Embedded)
			if !ok {
				t.Fatalf("expected Embedded, got %T", src)
			}
			if embedded.Provider != tt.wantProvider {
				t.Errorf("expected provider %q, got %q", tt.wantProvider, embedded.Provider)
			}
			if embedded.VideoID != tt.wantVideoID {
				t.Errorf("expected video id %q, got %q", tt.wantVideoID, embedded.VideoID)
			}
		})
	}
}

func TestResolveEmbeddedStartOffset(t *testing.T) {
	src, err := Resolve("https://youtu.be/XXXXXXXXXXX", 12*time.Second, true, false)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	embedded, ok := src.(Embedded)
	if !ok {
		t.Fatalf("expected Embedded, got %T", src)
	}
	if embedded.StartSeconds != 12 {
		t.Errorf("expected start offset 12, got %d", embedded.StartSeconds)
	}
	if !strings.Contains(embedded.EmbedURL, "start=12") {
		t.Errorf("embed URL missing start parameter: %s", embedded.EmbedURL)
	}
	if !strings.Contains(embedded.EmbedURL, "mute=1") {
		t.Errorf("embed URL missing mute parameter: %s", embedded.EmbedURL)
	}
}

func TestResolveVimeoStartFragment(t *testing.T) {
	src, err := Resolve("https://vimeo.com/76979871", 45*time.Second, false, true)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	embedded := src.(Embedded)
	if !strings.HasSuffix(embedded.EmbedURL, "#t=45s") {
		t.Errorf("expected #t=45s fragment, got %s", embedded.EmbedURL)
	}
	if !strings.Contains(embedded.EmbedURL, "loop=1") {
		t.Errorf("embed URL missing loop parameter: %s", embedded.EmbedURL)
	}
}

func TestResolveNegativeElapsedFloorsAtZero(t *testing.T) {
	src, err := Resolve("https://youtu.be/dQw4w9WgXcQ", -5*time.Second, true, false)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got := src.(Embedded).StartSeconds; got != 0 {
		t.Errorf("expected start offset 0, got %d", got)
	}
}

func TestResolveEmptyRef(t *testing.T) {
	_, err := Resolve("", 0, true, false)
	if !errors.Is(err, ErrNoMedia) {
		t.Fatalf("expected ErrNoMedia, got %v", err)
	}
}
