package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/book-expert/tts-job-service/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerJobID     = "X-Job-ID"
	statusOK        = "ok"
	statusUnhealthy = "unhealthy"
	workerBusy      = "busy"
	workerIdle      = "idle"
)

// ErrWorkerBusy is reported when a job arrives while another one runs.
var ErrWorkerBusy = errors.New("worker is busy with another job")

// CreateJob runs one job synchronously. The job is detached from the request
// context so a disconnecting client does not abort it; the result is archived
// either way.
func (s *Server) CreateJob(c *gin.Context) {
	req := core.DefaultJobRequest()

	bindErr := c.ShouldBindJSON(&req)
	if bindErr != nil {
		c.JSON(http.StatusBadRequest, core.ErrorResult(bindErr))

		return
	}

	validateErr := validate(req)
	if validateErr != nil {
		c.JSON(http.StatusUnprocessableEntity, core.ErrorResult(validateErr))

		return
	}

	jobID := uuid.NewString()
	c.Header(headerJobID, jobID)

	jobCtx := context.WithoutCancel(c.Request.Context())

	result, ok := s.deps.Runner.TryProcess(jobCtx, jobID, req)
	if !ok {
		c.JSON(http.StatusTooManyRequests, core.ErrorResult(ErrWorkerBusy))

		return
	}

	s.archive(jobCtx, jobID, result)

	if !result.Succeeded() {
		c.JSON(http.StatusInternalServerError, result)

		return
	}

	c.JSON(http.StatusOK, result)
}

// GetJob returns an archived result.
func (s *Server) GetJob(c *gin.Context) {
	if s.deps.Archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result archive is not configured"})

		return
	}

	result, err := s.deps.Archive.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

			return
		}

		s.log.Error("Failed to read result %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, result)
}

// ListVoices lists reference voices with fresh access URLs.
func (s *Server) ListVoices(c *gin.Context) {
	if s.deps.Voices == nil {
		c.JSON(http.StatusOK, gin.H{"voices": []core.ObjectInfo{}})

		return
	}

	voices, err := s.deps.Voices.ListUnder(c.Request.Context(), core.VoicesPrefix)
	if err != nil {
		s.log.Error("Failed to list voices: %v", err)
		c.JSON(statusForStorageError(err), gin.H{"error": err.Error()})

		return
	}

	if voices == nil {
		voices = []core.ObjectInfo{}
	}

	c.JSON(http.StatusOK, gin.H{"voices": voices})
}

// Health runs every dependency check and reports whether a job is running.
// A busy worker is healthy.
func (s *Server) Health(c *gin.Context) {
	status := http.StatusOK
	overall := statusOK
	checks := make(map[string]string, len(s.deps.Checks))

	for _, check := range s.deps.Checks {
		err := check.Check(c.Request.Context())
		if err != nil {
			status = http.StatusServiceUnavailable
			overall = statusUnhealthy
			checks[check.Name] = err.Error()

			continue
		}

		checks[check.Name] = statusOK
	}

	worker := workerIdle
	if s.deps.Runner.Busy() {
		worker = workerBusy
	}

	c.JSON(status, gin.H{"status": overall, "worker": worker, "checks": checks})
}

func (s *Server) archive(ctx context.Context, jobID string, result core.JobResult) {
	if s.deps.Archive == nil {
		return
	}

	err := s.deps.Archive.Put(ctx, jobID, result)
	if err != nil {
		s.log.Warn("Failed to archive result of job %s: %v", jobID, err)
	}
}

// validate checks the request fields and the locator shape before a job is
// started, so malformed input is reported as such.
func validate(req core.JobRequest) error {
	err := req.Validate()
	if err != nil {
		return err
	}

	_, _, err = req.Reference()

	return err
}

func statusForStorageError(err error) int {
	switch {
	case errors.Is(err, core.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}
