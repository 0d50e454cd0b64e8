// Package detect delegates ad detection to an external chat-completions
// service. The backend calls it only on a cache miss.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

const prompt = `Please extract any advertisement and sponsored content from the following subtitle text.
1. Combine ads into segments if they're part of the same ad, or close in timestamps.
2. Return as few segments as possible.
3. Make the topic as concise as possible.
4. Identified segments should typically be longer than 10 seconds.
4.1. For example, one sentence callout should be ignored.
5. Identified segments should typically be more 10 seconds apart.
6. Identified segments must be unrelated to the main content of the video.
6.1. For example, asking to support the channel is not an ad.

Answer with a JSON object only, shaped as
{"segments": [{"start_time": <seconds>, "end_time": <seconds>, "topic": "<topic>"}]}
and {"segments": []} when there is no ad.`

var (
	// ErrBadTranscript is returned when the transcript is not a subtitle document.
	ErrBadTranscript = errors.New("transcript is not a subtitle document")
	// ErrBadReply is returned when the service answer cannot be used.
	ErrBadReply = errors.New("unusable detector reply")
)

// Options configures the detector.
type Options struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Detector calls an OpenAI-compatible chat-completions endpoint.
type Detector struct {
	client *openai.Client
	model  string
	log    logrus.FieldLogger
}

// New creates a detector. A nil httpClient gets one with opts.Timeout.
func New(opts Options, httpClient *http.Client, log logrus.FieldLogger) (*Detector, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("detect: invalid base url %q", opts.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	cfg.HTTPClient = httpClient

	return &Detector{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		log:    logging.Component(log, "detect"),
	}, nil
}

type subtitleDocument struct {
	Body []struct {
		From    json.Number `json:"from"`
		To      json.Number `json:"to"`
		Content string      `json:"content"`
	} `json:"body"`
}

// Reformat renders a subtitle document as "from->to: content" lines, keeping
// the numbers exactly as written in the source.
func Reformat(transcript []byte) (string, error) {
	var doc subtitleDocument
	if err := json.Unmarshal(transcript, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadTranscript, err)
	}
	if doc.Body == nil {
		return "", fmt.Errorf("%w: missing body", ErrBadTranscript)
	}

	lines := make([]string, 0, len(doc.Body))
	for _, item := range doc.Body {
		lines = append(lines, fmt.Sprintf("%s->%s: %s", item.From, item.To, item.Content))
	}
	return strings.Join(lines, "\n"), nil
}

// Detect returns the ad segments of a raw subtitle document.
func (d *Detector) Detect(ctx context.Context, transcript []byte) ([]types.Segment, error) {
	text, err := Reformat(transcript)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("detect: service error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("detect: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("detect: %w: no choices", ErrBadReply)
	}

	segments, err := parseSegments(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"model":    d.model,
		"segments": len(segments),
		"tokens":   resp.Usage.TotalTokens,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("Detection completed")
	return segments, nil
}

// parseSegments decodes {"segments": [...]}, tolerating a fenced code block.
func parseSegments(content string) ([]types.Segment, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var out struct {
		Segments []types.Segment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("detect: %w: %v", ErrBadReply, err)
	}
	if err := types.ValidateSegments(out.Segments); err != nil {
		return nil, fmt.Errorf("detect: %w: %v", ErrBadReply, err)
	}
	if out.Segments == nil {
		out.Segments = []types.Segment{}
	}
	return out.Segments, nil
}
