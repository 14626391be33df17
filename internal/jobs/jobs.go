// Package jobs runs conversions asynchronously on a bounded worker pool and
// keeps their state in memory until a TTL expires.
package jobs

import (
	"sync"
	"time"

	"github.com/dgallion1/docshift/internal/convert"
)

// Status represents the state of a conversion job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusParsing    Status = "parsing"
	StatusConverting Status = "converting"
	StatusPublishing Status = "publishing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial" // converted, but publishing failed
)

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks the state of a single conversion.
type Job struct {
	mu sync.Mutex

	ID       string
	Filename string
	To       string

	Status Status
	Phase  string

	PublishedKey string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	request convert.Request
	result  *convert.Result
	errors  []string
}

func newJob(id string, req convert.Request, now time.Time) *Job {
	return &Job{
		ID:        id,
		Filename:  req.Filename,
		To:        req.To,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		request:   req,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status Status, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// Result returns the conversion output once the job has converted.
func (j *Job) Result() (*convert.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.result != nil
}

func (j *Job) setResult(res *convert.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.request.Data = nil
	j.UpdatedAt = time.Now()
}

func (j *Job) setPublished(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.PublishedKey = key
}

func (j *Job) takeRequest() convert.Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.request
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID           string    `json:"job_id"`
	Filename     string    `json:"filename"`
	To           string    `json:"to,omitempty"`
	Status       Status    `json:"status"`
	Phase        string    `json:"phase"`
	Title        string    `json:"title,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	PublishedKey string    `json:"published_key,omitempty"`
	Errors       []string  `json:"errors"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := Snapshot{
		ID:           j.ID,
		Filename:     j.Filename,
		To:           j.To,
		Status:       j.Status,
		Phase:        j.Phase,
		PublishedKey: j.PublishedKey,
		Errors:       append([]string{}, j.errors...),
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if j.result != nil {
		snap.Title = j.result.Title
		snap.ContentHash = j.result.ContentHash
	}
	return snap
}

// Store is a thread-safe in-memory job registry with TTL eviction.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *Store) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs not updated within the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
