package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusExtracting JobStatus = "extracting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of a single document extraction.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	URL      string    `json:"url"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	fileData []byte
	errors   []string
}

// Progress tracks how far extraction got.
type Progress struct {
	TablesFound   int      `json:"tables_found"`
	TablesStored  int      `json:"tables_stored"`
	TablesDropped int      `json:"tables_dropped"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job for one uploaded document.
func NewJob(docURL, filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		URL:         docURL,
		Filename:    filename,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetTitle records the document title once parsing finds one.
func (j *Job) SetTitle(title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Title == "" {
		j.Title = title
	}
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTables records how many candidate tables the document had and how many
// of them survived extraction.
func (j *Job) SetTables(found, kept int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TablesFound = found
	j.Progress.TablesDropped = max(found-kept, 0)
	j.UpdatedAt = time.Now()
}

// SetStored records how many tables were written to the store.
func (j *Job) SetStored(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TablesStored = n
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		URL:         j.URL,
		Filename:    j.Filename,
		Title:       j.Title,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    p,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
