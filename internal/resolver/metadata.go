package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedMetadata is returned when the metadata document is not JSON
	// of the expected shape.
	ErrMalformedMetadata = errors.New("malformed metadata document")
	// ErrNoSubtitle is returned when the document carries no subtitle URL.
	ErrNoSubtitle = errors.New("metadata has no subtitle url")
)

// playerMetadata mirrors the part of the player metadata response we read:
// data.subtitle.subtitles[0].subtitle_url
type playerMetadata struct {
	Data *struct {
		Subtitle *struct {
			Subtitles []struct {
				Lang        string `json:"lan"`
				SubtitleURL string `json:"subtitle_url"`
			} `json:"subtitles"`
		} `json:"subtitle"`
	} `json:"data"`
}

// ExtractSubtitleURL returns the first subtitle transcript URL of a player
// metadata document. Protocol-relative URLs are completed with https.
func ExtractSubtitleURL(doc []byte) (string, error) {
	var meta playerMetadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if meta.Data == nil || meta.Data.Subtitle == nil || len(meta.Data.Subtitle.Subtitles) == 0 {
		return "", ErrNoSubtitle
	}

	raw := strings.TrimSpace(meta.Data.Subtitle.Subtitles[0].SubtitleURL)
	switch {
	case raw == "":
		return "", ErrNoSubtitle
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw, nil
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		return raw, nil
	default:
		return "", fmt.Errorf("%w: unsupported subtitle url %q", ErrMalformedMetadata, raw)
	}
}
