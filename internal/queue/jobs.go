package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// Job represents one resolution attempt for a matched metadata response.
// Status, Error and Result are owned by the pool once submitted; read them
// through WorkerPool.Jobs.
type Job struct {
	ID        string
	Seq       uint64
	URL       string
	Body      []byte
	Status    string
	Error     error
	Result    *types.Resolution
	CreatedAt time.Time
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Source    string    `json:"source,omitempty"`
	Segments  int       `json:"segments"`
	Applied   bool      `json:"applied"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob creates a new job with a fresh ID
func NewJob(seq uint64, url string, body []byte) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Seq:       seq,
		URL:       url,
		Body:      body,
		Status:    types.StatusQueued,
		CreatedAt: time.Now(),
	}
}

func (j *Job) snapshot() JobStatus {
	s := JobStatus{
		ID:        j.ID,
		Seq:       j.Seq,
		URL:       j.URL,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
	if j.Error != nil {
		s.Error = j.Error.Error()
	}
	if j.Result != nil {
		s.Source = j.Result.Source
		s.Segments = len(j.Result.Segments)
		s.Applied = j.Result.Applied
	}
	return s
}
