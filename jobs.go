package main

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Job statuses
const (
	jobPending    = "pending"
	jobInProgress = "in_progress"
	jobCompleted  = "completed"
	jobFailed     = "failed"
)

var errQueueFull = &apiError{http.StatusServiceUnavailable, "Analysis queue is full. Please try again later."}

// Job represents an asynchronous analysis
type Job struct {
	ID         string            `json:"job_id"`
	UserID     string            `json:"-"`
	Status     string            `json:"status"`
	AnalysisID string            `json:"analysis_id,omitempty"`
	Result     *AnalysisResponse `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	request CreateAnalysisRequest
}

// JobStore manages jobs and their statuses. Pending and running jobs are
// kept until they finish; finished jobs are evicted after ttl.
type JobStore struct {
	sync.RWMutex
	jobs  *gocache.Cache
	ttl   time.Duration
	queue chan *Job
}

// NewJobStore returns a store whose queue holds queueSize jobs. A ttl of zero
// keeps finished jobs for the life of the process.
func NewJobStore(queueSize int, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := ttl
	if cleanup < 0 {
		cleanup = 0
	}
	return &JobStore{
		jobs:  gocache.New(gocache.NoExpiration, cleanup),
		ttl:   ttl,
		queue: make(chan *Job, queueSize),
	}
}

func generateJobID() string {
	return uuid.New().String()
}

func finished(status string) bool {
	return status == jobCompleted || status == jobFailed
}

// enqueue registers a job for req and hands it to the workers.
func (store *JobStore) enqueue(userID string, req CreateAnalysisRequest) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:        generateJobID(),
		UserID:    userID,
		Status:    jobPending,
		CreatedAt: now,
		UpdatedAt: now,
		request:   req,
	}

	store.Lock()
	store.jobs.Set(job.ID, job, gocache.NoExpiration)
	store.Unlock()

	select {
	case store.queue <- job:
		log.WithField("job_id", job.ID).Info("Job added")
		return job, nil
	default:
		store.jobs.Delete(job.ID)
		return nil, errQueueFull
	}
}

// getJob returns a snapshot of the job if userID owns it.
func (store *JobStore) getJob(userID, jobID string) (Job, bool) {
	store.RLock()
	defer store.RUnlock()
	val, exists := store.jobs.Get(jobID)
	if !exists {
		return Job{}, false
	}
	job := val.(*Job)
	if job.UserID != userID {
		return Job{}, false
	}
	return *job, true
}

// jobsForUser returns snapshots of the caller's jobs, newest first.
func (store *JobStore) jobsForUser(userID string) []Job {
	store.RLock()
	defer store.RUnlock()

	jobs := make([]Job, 0)
	for _, item := range store.jobs.Items() {
		if job := item.Object.(*Job); job.UserID == userID {
			jobs = append(jobs, *job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// update applies fn to a tracked job. A job that reaches a final status
// starts its eviction countdown.
func (store *JobStore) update(jobID string, fn func(job *Job)) {
	store.Lock()
	defer store.Unlock()
	val, exists := store.jobs.Get(jobID)
	if !exists {
		return
	}
	job := val.(*Job)
	fn(job)
	job.UpdatedAt = time.Now()
	if finished(job.Status) {
		store.jobs.Set(jobID, job, store.ttl)
	}
}

// startWorkerPool runs numWorkers workers until ctx is cancelled.
func startWorkerPool(ctx context.Context, app *App, numWorkers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Infof("Worker %d started", workerID)
			for {
				select {
				case <-ctx.Done():
					log.Infof("Worker %d stopped", workerID)
					return
				case job := <-app.Jobs.queue:
					log.Infof("Worker %d processing job: %s", workerID, job.ID)
					app.processJob(ctx, job)
				}
			}
		}(i)
	}
	return &wg
}

func (app *App) processJob(ctx context.Context, job *Job) {
	app.Jobs.update(job.ID, func(j *Job) { j.Status = jobInProgress })
	jobLogger := log.WithFields(logrus.Fields{"job_id": job.ID, "user_id": job.UserID})

	resp, err := app.analyzeText(ctx, job.request.Text, jobLogger)
	if err != nil {
		jobLogger.Errorf("Analysis failed: %v", err)
		msg := err.Error()
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			msg = errAnalysisFailed.Message
		}
		app.Jobs.update(job.ID, func(j *Job) {
			j.Status = jobFailed
			j.Error = msg
		})
		return
	}

	record := newAnalysisRecord(job.UserID, job.request, resp)
	if err := InsertAnalysis(app.Database, record); err != nil {
		jobLogger.Errorf("Save error: %v", err)
		record.ID = ""
	}

	app.Jobs.update(job.ID, func(j *Job) {
		j.Status = jobCompleted
		j.AnalysisID = record.ID
		j.Result = &resp
	})
	jobLogger.Info("Job completed")
}
