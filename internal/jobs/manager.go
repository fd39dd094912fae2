package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	// JobPartial means some, but not all, folds failed.
	JobPartial JobStatus = "partial"
)

// Job tracks the cross-validation of one workflow across its folds.
type Job struct {
	ID        string
	Workflow  string
	Status    JobStatus
	Progress  float64
	StartTime time.Time
	EndTime   *time.Time
	Folds     int
	Done      int
	Failed    int
	Logs      []string
	mu        sync.RWMutex
}

type Manager struct {
	jobs  map[string]*Job
	order []string
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
	}
}

func (m *Manager) CreateJob(workflow string, folds int) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:       uuid.NewString(),
		Workflow: workflow,
		Status:   JobPending,
		Folds:    folds,
		Logs:     []string{},
	}

	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	return job
}

// ListJobs returns the jobs in creation order.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}

// Counts returns the number of jobs in each status.
func (m *Manager) Counts() map[JobStatus]int {
	counts := make(map[JobStatus]int)
	for _, job := range m.ListJobs() {
		counts[job.GetStatus()]++
	}
	return counts
}

// Start marks the job running when its first fold is picked up.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobPending {
		j.Status = JobRunning
		j.StartTime = time.Now()
	}
}

// FoldDone records the outcome of one fold and advances the progress. The
// job finishes when every fold has reported.
func (j *Job) FoldDone(fold int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Done++
	if err != nil {
		j.Failed++
		j.appendLog(fmt.Sprintf("fold %d failed: %v", fold, err))
	} else {
		j.appendLog(fmt.Sprintf("fold %d done", fold))
	}
	if j.Folds > 0 {
		j.Progress = float64(j.Done) / float64(j.Folds)
	}
	if j.Done >= j.Folds {
		j.finish()
	}
}

func (j *Job) finish() {
	switch {
	case j.Failed == 0:
		j.Status = JobCompleted
	case j.Failed >= j.Done:
		j.Status = JobFailed
	default:
		j.Status = JobPartial
	}
	now := time.Now()
	j.EndTime = &now
}

func (j *Job) appendLog(message string) {
	timestamp := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", timestamp, message))
}

func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) GetProgress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

// FoldCounts returns how many folds have reported and how many of those
// failed.
func (j *Job) FoldCounts() (done, failed int) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Done, j.Failed
}

func (j *Job) GetLogs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return logs
}

// Duration is the time between the first fold starting and the last one
// reporting, or zero while the job is unfinished.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.EndTime == nil {
		return 0
	}
	return j.EndTime.Sub(j.StartTime)
}
