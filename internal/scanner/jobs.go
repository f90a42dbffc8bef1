package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventState  JobEventType = "state"
	JobEventResult JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For scan state transitions
	State State `json:"state,omitempty"`

	// For the final result
	Result any `json:"result,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

type JobKind string

const (
	JobScan   JobKind = "scan"
	JobCookie JobKind = "cookie"
)

type Job struct {
	ID        string        `json:"id"`
	Kind      JobKind       `json:"kind"`
	URL       string        `json:"url"`
	Country   string        `json:"country,omitempty"`
	Status    JobStatus     `json:"status"`
	State     State         `json:"state,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitzero"`
	Events    chan JobEvent `json:"-"`

	// Optional results:
	Result       *model.NormalizedScanResult   `json:"result,omitempty"`
	CookieResult *model.CookieComplianceResult `json:"cookie_result,omitempty"`
}

// Jobs runs scans in the background and streams their progress, for
// websocket clients and GET /jobs.
type Jobs struct {
	scanner *Scanner
	logger  logging.Logger
	history int

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
}

func NewJobs(s *Scanner, history int, logger logging.Logger) *Jobs {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Jobs{
		scanner:    s,
		history:    history,
		logger:     logger.With(logging.Field{Key: "component", Value: "jobs"}),
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
	}
}

func (j *Jobs) emit(job *Job, ev JobEvent) {
	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (j *Jobs) update(job *Job, fn func(*Job)) {
	j.jobsMu.Lock()
	defer j.jobsMu.Unlock()
	fn(job)
}

// Start validates req and launches the scan in the background. Invalid
// requests fail here, before a job exists.
func (j *Jobs) Start(ctx context.Context, kind JobKind, req model.ScanRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		URL:       req.URL,
		Country:   req.Country,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, 32),
	}
	jobCtx, cancel := context.WithCancel(ctx)

	j.jobsMu.Lock()
	j.jobs[job.ID] = job
	j.jobCancels[job.ID] = cancel
	j.jobsMu.Unlock()
	j.prune()

	j.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobPending})

	go j.runJob(jobCtx, job, req)
	return job, nil
}

func (j *Jobs) runJob(ctx context.Context, job *Job, req model.ScanRequest) {
	defer func() {
		j.jobsMu.Lock()
		job.EndedAt = time.Now().UTC()
		if cancel := j.jobCancels[job.ID]; cancel != nil {
			cancel()
		}
		delete(j.jobCancels, job.ID)
		j.jobsMu.Unlock()

		// Close events channel so websocket loop can terminate cleanly
		close(job.Events)
	}()

	j.update(job, func(jb *Job) { jb.Status = JobRunning })
	j.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobRunning})

	progress := func(ev Event) {
		j.update(job, func(jb *Job) { jb.State = ev.State })
		j.emit(job, JobEvent{JobID: job.ID, Type: JobEventState, State: ev.State, Error: ev.Error})
	}

	var (
		result any
		err    error
	)
	switch job.Kind {
	case JobCookie:
		var res *model.CookieComplianceResult
		res, err = j.scanner.ScanCookies(ctx, req, progress)
		if err == nil {
			j.update(job, func(jb *Job) { jb.CookieResult = res })
			result = res
		}
	default:
		var res *model.NormalizedScanResult
		res, err = j.scanner.Scan(ctx, req, progress)
		if err == nil {
			j.update(job, func(jb *Job) { jb.Result = res })
			result = res
		}
	}

	// A canceled job may still have finished its browser work; the result
	// is discarded either way.
	if ctx.Err() != nil {
		j.update(job, func(jb *Job) {
			jb.Status = JobCanceled
			jb.Error = ctx.Err().Error()
			jb.Result, jb.CookieResult = nil, nil
		})
		j.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobCanceled, Error: ctx.Err().Error()})
		return
	}
	if err != nil {
		j.update(job, func(jb *Job) {
			jb.Status = JobFailed
			jb.Error = err.Error()
		})
		j.emit(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobFailed, Error: err.Error()})
		return
	}

	j.update(job, func(jb *Job) { jb.Status = JobDone })
	j.emit(job, JobEvent{JobID: job.ID, Type: JobEventResult, Status: JobDone, Result: result})
}

func (j *Jobs) Cancel(jobID string) {
	j.jobsMu.Lock()
	cancel := j.jobCancels[jobID]
	j.jobsMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Get returns a snapshot of the job, or nil.
func (j *Jobs) Get(jobID string) *Job {
	j.jobsMu.Lock()
	defer j.jobsMu.Unlock()
	job, ok := j.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// List returns snapshots of all known jobs, newest first.
func (j *Jobs) List() []Job {
	j.jobsMu.Lock()
	defer j.jobsMu.Unlock()
	out := make([]Job, 0, len(j.jobs))
	for _, job := range j.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out
}

// prune drops the oldest finished jobs beyond the history limit.
func (j *Jobs) prune() {
	if j.history <= 0 {
		return
	}
	j.jobsMu.Lock()
	defer j.jobsMu.Unlock()
	if len(j.jobs) <= j.history {
		return
	}
	var finished []*Job
	for _, job := range j.jobs {
		if !job.EndedAt.IsZero() {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].EndedAt.Before(finished[b].EndedAt) })
	for _, job := range finished {
		if len(j.jobs) <= j.history {
			break
		}
		delete(j.jobs, job.ID)
	}
}
