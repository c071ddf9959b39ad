package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carbon-scribe/verification-engine/internal/compliance"
	"carbon-scribe/verification-engine/internal/emissions"
	"carbon-scribe/verification-engine/internal/tiers"
)

// TierHeader carries the caller's subscription tier
const TierHeader = "X-Subscription-Tier"

const maxPayloadBytes = 10 << 20

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	subjects := rg.Group("/subjects/:subject", tierMiddleware())
	{
		subjects.POST("/documents", h.Ingest)
		subjects.GET("/summary", h.Summary)
		subjects.GET("/runs", h.ListRuns)
		subjects.GET("/runs/export", h.ExportRuns)
		subjects.GET("/runs/:run_id", h.GetRun)
		subjects.POST("/evaluate", h.Evaluate)
		subjects.GET("/trend", h.Trend)
		subjects.POST("/merge", h.Merge)
		subjects.GET("/profile", h.GetProfile)
		subjects.PUT("/profile", h.SaveProfile)
	}

	rg.POST("/frameworks/resolve", tierMiddleware(), h.ResolveFrameworks)
}

// tierMiddleware parses the tier header; a missing header is the free tier
func tierMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, err := tiers.Parse(c.GetHeader(TierHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Set("tier", tier)
		c.Next()
	}
}

func tierFrom(c *gin.Context) tiers.Tier {
	if v, ok := c.Get("tier"); ok {
		if tier, ok := v.(tiers.Tier); ok {
			return tier
		}
	}
	return tiers.Free
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSubjectRequired),
		errors.Is(err, ErrSameSubject),
		errors.Is(err, emissions.ErrInvalidPayload),
		errors.Is(err, emissions.ErrInvalidRecord),
		errors.Is(err, compliance.ErrUnknownFramework):
		return http.StatusBadRequest
	case errors.Is(err, emissions.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, tiers.ErrFeatureNotAvailable):
		return http.StatusForbidden
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTamperedRun), errors.Is(err, ErrAlreadyCredited):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *Handler) Ingest(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "extracted data is required"})
		return
	}

	iot, _ := strconv.ParseBool(c.DefaultQuery("iot_adjusted", "false"))

	result, err := h.service.Ingest(c.Request.Context(), IngestRequest{
		SubjectID:   c.Param("subject"),
		Payload:     payload,
		Tier:        tierFrom(c),
		IoTAdjusted: iot,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("subject"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := h.service.Runs(c.Request.Context(), c.Param("subject"), tierFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), c.Param("subject"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) ExportRuns(c *gin.Context) {
	subject := c.Param("subject")

	var buf bytes.Buffer
	if err := h.service.ExportRuns(c.Request.Context(), subject, tierFrom(c), &buf); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-runs.csv"`, subject))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	req.SubjectID = c.Param("subject")
	req.Tier = tierFrom(c)

	run, err := h.service.Evaluate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *Handler) Trend(c *gin.Context) {
	summary, err := h.service.Trend(c.Request.Context(), c.Param("subject"), tierFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Merge(c *gin.Context) {
	var req struct {
		FromSubject string `json:"from_subject" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Merge(c.Request.Context(), MergeRequest{
		FromSubject: req.FromSubject,
		ToSubject:   c.Param("subject"),
		Tier:        tierFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), c.Param("subject"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) SaveProfile(c *gin.Context) {
	var profile compliance.OrganizationProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.service.SaveProfile(c.Request.Context(), c.Param("subject"), profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) ResolveFrameworks(c *gin.Context) {
	var req struct {
		Profile    compliance.OrganizationProfile `json:"profile"`
		Frameworks []compliance.FrameworkID       `json:"frameworks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Frameworks) > 0 && !tierFrom(c).Capabilities().FrameworkOverride {
		respondError(c, fmt.Errorf("%w: framework override on %s tier", tiers.ErrFeatureNotAvailable, tierFrom(c)))
		return
	}

	resolution, err := compliance.Resolve(req.Profile.Normalize(), req.Frameworks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolution)
}
