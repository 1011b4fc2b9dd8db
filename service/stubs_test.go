package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"worker-minutes/constant"
	"worker-minutes/entities"
	"worker-minutes/pkg/llm"
	"worker-minutes/pkg/transcribe"
	"worker-minutes/repository"
)

var errStoreDown = errors.New("store unavailable")

type memRepo struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]entities.Job
	history    map[uuid.UUID][]constant.JobStatus
	failNext   int
	alwaysFail bool
	updates    int
	// lostAcks lists statuses whose next write commits but reports errStoreDown.
	lostAcks []constant.JobStatus
}

func newMemRepo() *memRepo {
	return &memRepo{
		jobs:    make(map[uuid.UUID]entities.Job),
		history: make(map[uuid.UUID][]constant.JobStatus),
	}
}

func (r *memRepo) Create(_ context.Context, job *entities.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) Get(_ context.Context, jobId uuid.UUID, userId string) (*entities.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobId]
	if !ok || job.UserID != userId {
		return nil, repository.ErrJobNotFound
	}
	return &job, nil
}

func (r *memRepo) Update(_ context.Context, jobId uuid.UUID, userId string, update repository.JobUpdate) (*entities.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.alwaysFail {
		return nil, errStoreDown
	}
	if r.failNext > 0 {
		r.failNext--
		return nil, errStoreDown
	}
	job, ok := r.jobs[jobId]
	if !ok || job.UserID != userId {
		return nil, repository.ErrJobNotFound
	}
	if err := update.Check(job.Status); err != nil {
		return nil, err
	}
	update.ApplyTo(&job)
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobId] = job
	if update.Status != nil {
		r.history[jobId] = append(r.history[jobId], *update.Status)
		for i, s := range r.lostAcks {
			if s == *update.Status {
				r.lostAcks = append(r.lostAcks[:i], r.lostAcks[i+1:]...)
				return nil, errStoreDown
			}
		}
	}
	return &job, nil
}

func (r *memRepo) Query(_ context.Context, userId string, _, _ int) ([]entities.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]entities.Job, 0)
	for _, j := range r.jobs {
		if j.UserID == userId {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (r *memRepo) Migrate(context.Context) error { return nil }

func (r *memRepo) Close() error { return nil }

func (r *memRepo) job(id uuid.UUID) entities.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *memRepo) statuses(id uuid.UUID) []constant.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]constant.JobStatus(nil), r.history[id]...)
}

type pollStep struct {
	res transcribe.PollResult
	err error
}

type transcriberStub struct {
	mu        sync.Mutex
	handle    string
	submitErr error
	submits   int
	steps     []pollStep
	polled    []string
}

func (s *transcriberStub) Submit(_ context.Context, _ transcribe.SubmissionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.handle, nil
}

func (s *transcriberStub) Poll(_ context.Context, handle string) (transcribe.PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.polled)
	s.polled = append(s.polled, handle)
	if len(s.steps) == 0 {
		return transcribe.PollResult{Status: transcribe.PollInProgress}, nil
	}
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i].res, s.steps[i].err
}

func (s *transcriberStub) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polled)
}

type llmStub struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (s *llmStub) Invoke(_ context.Context, _ llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return llm.Response{Text: s.text}, nil
}

func (s *llmStub) Close() error { return nil }
