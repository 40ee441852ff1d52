package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driftscope/internal/domain"
)

// fakeRunClient scripts the remote runner: each submission is assigned
// the next result from the queue, and WaitRun serves it. An optional
// onWait hook runs before each polling attempt, letting tests trigger
// cancellation mid-run.
type fakeRunClient struct {
	mu        sync.Mutex
	nextID    int
	submitted []domain.RunParams
	canceled  []string
	results   map[string]*domain.Run

	submitErr error
	waitErr   error
	queue     []*domain.Run
	onWait    func(runID string)
}

func newFakeRunClient(queue ...*domain.Run) *fakeRunClient {
	return &fakeRunClient{
		queue:   queue,
		results: make(map[string]*domain.Run),
	}
}

func (f *fakeRunClient) SubmitRun(_ context.Context, params domain.RunParams, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}

	f.nextID++
	runID := fmt.Sprintf("run-%d", f.nextID)
	f.submitted = append(f.submitted, params)

	run := &domain.Run{ID: runID, Type: params.RunType(), Status: domain.RunStatusFinished}
	if len(f.queue) > 0 {
		scripted := *f.queue[0]
		scripted.ID = runID
		run = &scripted
		f.queue = f.queue[1:]
	}
	f.results[runID] = run
	return runID, nil
}

func (f *fakeRunClient) WaitRun(_ context.Context, runID string, _ time.Duration) (*domain.Run, error) {
	if f.onWait != nil {
		f.onWait(runID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	run, ok := f.results[runID]
	if !ok {
		return nil, fmt.Errorf("unknown run %q", runID)
	}
	copied := *run
	return &copied, nil
}

func (f *fakeRunClient) CancelRun(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, runID)
	return nil
}

func (f *fakeRunClient) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeRunClient) canceledRuns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}
