package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/service"
)

// EmergencyHandler — HTTP слой координатора вызовов.
type EmergencyHandler struct {
	emergencies *service.EmergencyService
}

// NewEmergencyHandler создаёт хэндлер.
func NewEmergencyHandler(emergencies *service.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{emergencies: emergencies}
}

// Create обрабатывает POST /api/emergencies — приём нового вызова.
func (h *EmergencyHandler) Create(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Type        string `json:"type" binding:"required"`
		Description string `json:"description" binding:"required"`
		Location    string `json:"location" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emergency, err := h.emergencies.Intake(c.Request.Context(), service.IntakeInput{
		Type:        req.Type,
		Description: req.Description,
		Location:    req.Location,
		ReporterID:  userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, emergency)
}

// Get обрабатывает GET /api/emergencies/:id.
func (h *EmergencyHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор"})
		return
	}

	emergency, err := h.emergencies.GetEmergency(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, emergency)
}

// List обрабатывает GET /api/emergencies.
// Заявитель видит свои вызовы, спасатель и администратор — все.
// ?active=true сужает выборку до pending и assigned.
func (h *EmergencyHandler) List(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	role, err := currentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var filter service.ActiveFilter
	if role == models.RoleUser {
		filter.ReporterID = &userID
	}

	var (
		list    []models.Emergency
		listErr error
	)
	if c.Query("active") == "true" {
		list, listErr = h.emergencies.ListActive(c.Request.Context(), filter)
	} else {
		list, listErr = h.emergencies.ListAll(c.Request.Context(), filter)
	}
	if listErr != nil {
		respondError(c, listErr)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ListPending обрабатывает GET /api/emergencies/pending — очередь
// ожидания для дежурной смены в порядке обслуживания.
func (h *EmergencyHandler) ListPending(c *gin.Context) {
	list, err := h.emergencies.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ListMine обрабатывает GET /api/emergencies/assigned — активные
// вызовы, закреплённые за текущим спасателем.
func (h *EmergencyHandler) ListMine(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	list, err := h.emergencies.ListActive(c.Request.Context(), service.ActiveFilter{
		ResponderID: &userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// Accept обрабатывает POST /api/emergencies/:id/accept — попытку
// спасателя забрать вызов. Проигранная гонка отвечает 409.
func (h *EmergencyHandler) Accept(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор"})
		return
	}

	emergency, err := h.emergencies.AcceptAttempt(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, emergency)
}

// Resolve обрабатывает POST /api/emergencies/:id/resolve.
func (h *EmergencyHandler) Resolve(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	role, err := currentUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор"})
		return
	}

	emergency, err := h.emergencies.Resolve(c.Request.Context(), id, userID, role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, emergency)
}

// Classify обрабатывает POST /api/classify — предварительная оценка
// приоритета по описанию, без создания вызова.
func (h *EmergencyHandler) Classify(c *gin.Context) {
	var req struct {
		Description string `json:"description" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority := h.emergencies.ClassifyPreview(c.Request.Context(), req.Description)
	c.JSON(http.StatusOK, gin.H{"priority": priority})
}

// RebuildQueue обрабатывает POST /api/admin/queue/rebuild.
func (h *EmergencyHandler) RebuildQueue(c *gin.Context) {
	if err := h.emergencies.RebuildQueue(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "очередь перестроена"})
}
