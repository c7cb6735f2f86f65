package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
	"github.com/durablenotify/notifysvc/internal/service"
)

// Handlers binds the notification service to Gin routes.
type Handlers struct {
	service *service.NotificationService
	logger  zerolog.Logger
}

// NewHandlers creates a new Handlers.
func NewHandlers(svc *service.NotificationService, logger *zerolog.Logger) *Handlers {
	return &Handlers{
		service: svc,
		logger:  logger.With().Str("layer", "http_handler").Logger(),
	}
}

// RegisterRoutes wires the notification API under /api/v1.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/notifications", h.CreateNotification)
		api.GET("/notifications/:id", h.GetNotification)
		api.GET("/notifications/:id/jobs", h.ListJobs)
		api.DELETE("/notifications/:id", h.CancelNotification)
	}
}

// CreateNotification handles POST /api/v1/notifications.
func (h *Handlers) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	in := service.NewNotificationInput{
		Context:          req.Context,
		Token:            req.Token,
		Priority:         model.Priority(req.Priority),
		Subject:          req.Subject,
		PlainText:        req.PlainText,
		HTMLText:         req.HTMLText,
		RecipientUserIDs: req.RecipientUserIDs,
	}
	if req.NotBefore != nil {
		t := time.Unix(*req.NotBefore, 0).UTC()
		in.NotBefore = &t
	}

	notification, err := h.service.Notify(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err, "failed to create notification")
		return
	}

	c.JSON(http.StatusCreated, toNotificationResponse(notification))
}

// GetNotification handles GET /api/v1/notifications/:id.
func (h *Handlers) GetNotification(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	notification, err := h.service.GetNotification(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to get notification")
		return
	}
	c.JSON(http.StatusOK, toNotificationResponse(notification))
}

// ListJobs handles GET /api/v1/notifications/:id/jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to list jobs")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	c.JSON(http.StatusOK, resp)
}

// CancelNotification handles DELETE /api/v1/notifications/:id.
func (h *Handlers) CancelNotification(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	cancelled, err := h.service.CancelNotification(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to cancel notification")
		return
	}
	c.JSON(http.StatusOK, CancelResponse{Cancelled: cancelled})
}

func (h *Handlers) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid notification id"})
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handlers) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repo.ErrInvalidNotification):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrDuplicateRecord):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrNotCancellable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback})
	}
}

func toNotificationResponse(n *model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:               n.ID,
		Token:            n.Token,
		Context:          n.Context,
		Priority:         n.Priority,
		Subject:          n.Subject,
		PlainText:        n.PlainText,
		HTMLText:         n.HTMLText,
		CreatedAt:        n.CreatedAt,
		RecipientUserIDs: n.RecipientIDs,
	}
}

func toJobResponse(j *model.NotificationJob) JobResponse {
	return JobResponse{
		ID:               j.ID,
		NotificationID:   j.NotificationID,
		RecipientID:      j.RecipientID,
		Priority:         j.Priority,
		CreatedAt:        j.CreatedAt,
		NotBefore:        j.NotBefore,
		RetriesRemaining: j.RetriesRemaining,
		Owner:            j.Owner,
		StartAt:          j.StartAt,
		EndAt:            j.EndAt,
		Successful:       j.Successful,
	}
}
