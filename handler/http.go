package handler

import (
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"net/http"
	"strconv"
	"worker-minutes/dto"
	"worker-minutes/repository"
	"worker-minutes/service"
)

type JobsHandler struct {
	intake service.Intake
	repo   repository.JobRepository
}

func NewJobsHandler(intake service.Intake, repo repository.JobRepository) *JobsHandler {
	return &JobsHandler{
		intake: intake,
		repo:   repo,
	}
}

func (h *JobsHandler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/jobs", h.CreateJob)
	v1.GET("/users/:userId/jobs", h.ListJobs)
	v1.GET("/users/:userId/jobs/:jobId", h.GetJob)
}

func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	job, err := h.intake.Submit(c.Request.Context(), req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
			return
		}
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to submit job")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to submit job"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *JobsHandler) ListJobs(c *gin.Context) {
	limit, err := queryInt(c, "limit", repository.DefaultQueryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if limit == 0 {
		limit = repository.DefaultQueryLimit
	}
	if limit > repository.MaxQueryLimit {
		limit = repository.MaxQueryLimit
	}

	jobs, err := h.repo.Query(c.Request.Context(), c.Param("userId"), limit, offset)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to query jobs")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to query jobs"})
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

func (h *JobsHandler) GetJob(c *gin.Context) {
	jobId, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid job id"})
		return
	}

	job, err := h.repo.Get(c.Request.Context(), jobId, c.Param("userId"))
	if errors.Is(err, repository.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "job not found"})
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to get job")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}
