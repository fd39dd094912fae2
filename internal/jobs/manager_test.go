package jobs

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndList(t *testing.T) {
	m := NewManager()
	a := m.CreateJob("null_decision_tree", 3)
	b := m.CreateJob("imputer_linear_svm", 3)

	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, JobPending, a.GetStatus())

	list := m.ListJobs()
	require.Len(t, list, 2)
	assert.Equal(t, "null_decision_tree", list[0].Workflow)
	assert.Equal(t, "imputer_linear_svm", list[1].Workflow)
}

func TestJob_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		failures []bool
		want     JobStatus
	}{
		{"all succeed", []bool{false, false, false}, JobCompleted},
		{"some fail", []bool{false, true, false}, JobPartial},
		{"all fail", []bool{true, true, true}, JobFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewManager().CreateJob("wf", len(tt.failures))
			job.Start()
			assert.Equal(t, JobRunning, job.GetStatus())
			for i, fail := range tt.failures {
				var err error
				if fail {
					err = errors.New("boom")
				}
				job.FoldDone(i, err)
			}
			assert.Equal(t, tt.want, job.GetStatus())
			assert.Equal(t, 1.0, job.GetProgress())
			assert.Len(t, job.GetLogs(), len(tt.failures))
			assert.NotNil(t, job.EndTime)
		})
	}
}

func TestJob_ConcurrentFolds(t *testing.T) {
	m := NewManager()
	job := m.CreateJob("wf", 50)
	job.Start()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(fold int) {
			defer wg.Done()
			var err error
			if fold%10 == 0 {
				err = errors.New("degenerate fold")
			}
			job.FoldDone(fold, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, JobPartial, job.GetStatus())
	assert.Equal(t, 5, job.Failed)
	assert.Equal(t, map[JobStatus]int{JobPartial: 1}, m.Counts())
	assert.GreaterOrEqual(t, job.Duration().Nanoseconds(), int64(0))
}

func TestJob_Progress(t *testing.T) {
	job := NewManager().CreateJob("wf", 4)
	job.Start()
	job.Start()
	started := job.StartTime
	job.FoldDone(0, nil)
	assert.Equal(t, JobRunning, job.GetStatus())
	assert.Equal(t, started, job.StartTime)
	assert.InDelta(t, 0.25, job.GetProgress(), 1e-12)
	assert.Zero(t, job.Duration())

	job.FoldDone(1, errors.New("single class in training folds"))
	logs := job.GetLogs()
	require.Len(t, logs, 2)
	assert.Contains(t, logs[0], "fold 0 done")
	assert.Contains(t, logs[1], "fold 1 failed: single class in training folds")
}
