package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docshift/internal/jobs"
)

// handleSubmitJob queues a conversion and returns 202 with the job id.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		jsonError(w, "async jobs are disabled", http.StatusServiceUnavailable)
		return
	}

	req, rerr := s.readConvertRequest(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}

	job, err := s.queue.Submit(req)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, jobs.ErrQueueFull) {
			status = http.StatusTooManyRequests
		}
		jsonError(w, err.Error(), status)
		return
	}

	s.log.Info("job queued", "job_id", job.ID, "filename", req.Filename, "to", req.To)
	jsonResponse(w, map[string]any{
		"job_id":     job.ID,
		"status":     jobs.StatusQueued,
		"filename":   req.Filename,
		"poll_url":   "/api/jobs/" + job.ID,
		"result_url": "/api/jobs/" + job.ID + "/result",
	}, http.StatusAccepted)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	jsonResponse(w, job.Snapshot(), http.StatusOK)
}

// handleJobResult returns the converted output of a finished job.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}

	if res, ok := job.Result(); ok {
		writeOutput(w, job.Filename, res)
		return
	}

	snap := job.Snapshot()
	if snap.Status == jobs.StatusFailed {
		jsonResponse(w, map[string]any{
			"error":  "job failed",
			"errors": snap.Errors,
		}, http.StatusUnprocessableEntity)
		return
	}
	jsonResponse(w, map[string]any{
		"error":  "job not finished",
		"status": snap.Status,
	}, http.StatusConflict)
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) *jobs.Job {
	if s.queue == nil {
		jsonError(w, "async jobs are disabled", http.StatusServiceUnavailable)
		return nil
	}
	job := s.queue.Get(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}
