package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/repository"
	"github.com/olegsazonov/emergency-backend/internal/service"
	"github.com/olegsazonov/emergency-backend/internal/storage"
)

// Разрешённые типы изображений. SVG намеренно исключён: его не
// распознать по магическим байтам и он может содержать скрипты.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// MediaHandler управляет фотографиями с места происшествия.
type MediaHandler struct {
	repo        *repository.MediaRepository
	storage     *storage.PhotoStorage
	emergencies *service.EmergencyService
}

// NewMediaHandler создаёт хэндлер.
func NewMediaHandler(repo *repository.MediaRepository, storage *storage.PhotoStorage, emergencies *service.EmergencyService) *MediaHandler {
	return &MediaHandler{repo: repo, storage: storage, emergencies: emergencies}
}

// UploadPhoto обрабатывает POST /api/emergencies/:id/photos.
// Загружать может заявитель вызова или закреплённый спасатель.
func (h *MediaHandler) UploadPhoto(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	emergencyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор"})
		return
	}

	emergency, err := h.emergencies.GetEmergency(c.Request.Context(), emergencyID)
	if err != nil {
		respondError(c, err)
		return
	}

	if emergency.ReporterID != userID && !emergency.IsAssignedTo(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "нет доступа к этому вызову"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле file обязательно"})
		return
	}

	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "файл не может быть пустым"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неподдерживаемый формат файла, разрешены только изображения"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	// Реальный тип определяется по магическим байтам, а не по расширению.
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось прочитать файл"})
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось определить тип файла"})
		return
	}

	contentType := kind.MIME.Value
	if !allowedMimeTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("неподдерживаемый тип файла (%s)", contentType)})
		return
	}

	expectedExt := "." + kind.Extension
	if ext != expectedExt && !(ext == ".jpg" && expectedExt == ".jpeg") && !(ext == ".jpeg" && expectedExt == ".jpg") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("расширение файла (%s) не соответствует реальному типу (%s)", ext, expectedExt),
		})
		return
	}

	if seeker, ok := src.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось сбросить позицию файла"})
			return
		}
	}

	relativePath, size, err := h.storage.Save(c.Request.Context(), emergencyID, file.Filename, src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	media := &models.Media{
		EmergencyID: emergencyID,
		UploaderID:  userID,
		Path:        filepath.ToSlash(relativePath),
		MimeType:    contentType,
		SizeBytes:   size,
	}

	if err := h.repo.Create(c.Request.Context(), media); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, media)
}

// ListPhotos обрабатывает GET /api/emergencies/:id/photos.
func (h *MediaHandler) ListPhotos(c *gin.Context) {
	emergencyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный идентификатор"})
		return
	}

	list, err := h.repo.ListByEmergency(c.Request.Context(), emergencyID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}
