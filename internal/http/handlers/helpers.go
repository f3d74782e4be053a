package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/http/middleware"
	"github.com/olegsazonov/emergency-backend/internal/logger"
	"github.com/olegsazonov/emergency-backend/internal/pkg/apperror"
)

var errUserNotFound = errors.New("пользователь не найден в контексте")

// currentUserID извлекает userID из контекста.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, errUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, errUserNotFound
	}

	return userID, nil
}

// currentUserRole извлекает роль пользователя из контекста.
func currentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", errUserNotFound
	}

	role, ok := raw.(string)
	if !ok {
		return "", errUserNotFound
	}

	return role, nil
}

// respondError переводит ошибку сервисного слоя в HTTP ответ.
// Внутренние ошибки маскируются, их детали остаются в логе.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.WithComponent("http").WithError(err).
				WithField("path", c.Request.URL.Path).
				Error("внутренняя ошибка при обработке запроса")
			c.JSON(appErr.HTTPStatus, gin.H{"error": "внутренняя ошибка сервера", "code": appErr.Code})
			return
		}
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	logger.WithComponent("http").WithError(err).
		WithField("path", c.Request.URL.Path).
		Error("необработанная ошибка")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
}
