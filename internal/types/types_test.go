package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentContainsIsInclusive(t *testing.T) {
	seg := Segment{StartTime: 10, EndTime: 20, Topic: "Ad"}

	assert.False(t, seg.Contains(9.9))
	assert.True(t, seg.Contains(10))
	assert.True(t, seg.Contains(15))
	assert.True(t, seg.Contains(20))
	assert.False(t, seg.Contains(20.01))
}

func TestZeroLengthSegmentContainsItsInstant(t *testing.T) {
	seg := Segment{StartTime: 5, EndTime: 5}
	assert.True(t, seg.Contains(5))
	assert.False(t, seg.Contains(5.001))
}

func TestValidateSegments(t *testing.T) {
	assert.NoError(t, ValidateSegments(nil))
	assert.NoError(t, ValidateSegments([]Segment{{StartTime: 0, EndTime: 0}, {StartTime: 30, EndTime: 45, Topic: "Sponsor"}}))

	err := ValidateSegments([]Segment{{StartTime: 1, EndTime: 2}, {StartTime: 50, EndTime: 40}})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "segment 1")
	}

	assert.Error(t, ValidateSegments([]Segment{{StartTime: -1, EndTime: 2}}))
}
