package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Resolution source constants
const (
	SourceCache   = "cache_hit"
	SourceCompute = "computed"
)

// Segment is a sponsor/ad time range inside a video, in seconds.
type Segment struct {
	StartTime float64 `json:"start_time" validate:"gte=0"`
	EndTime   float64 `json:"end_time" validate:"gtefield=StartTime"`
	Topic     string  `json:"topic"`
}

// Contains reports whether pos lies inside the inclusive range [StartTime, EndTime].
func (s Segment) Contains(pos float64) bool {
	return pos >= s.StartTime && pos <= s.EndTime
}

// Resolution is the outcome of one successful segment resolution.
type Resolution struct {
	AttemptID   string
	Fingerprint string
	Source      string
	Segments    []Segment
	ResolvedAt  time.Time
	// Applied is false when a newer attempt had already been stored.
	Applied bool
}

var validate = validator.New()

// ValidateSegments checks every segment and returns the first violation.
func ValidateSegments(segments []Segment) error {
	for i, seg := range segments {
		if err := validate.Struct(seg); err != nil {
			return fmt.Errorf("segment %d (%v-%v): %w", i, seg.StartTime, seg.EndTime, err)
		}
	}
	return nil
}
