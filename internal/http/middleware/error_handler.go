package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно.
// AppError переводится в HTTP статус по своему коду, известные sentinel
// ошибки хранилища — в 404, всё остальное маскируется как внутренняя
// ошибка сервера.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError && logger.Log != nil {
				logger.Log.WithFields(logrus.Fields{
					"error":  appErr.Error(),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Request error")
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}

		switch {
		case errors.Is(err, repository.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "проект не найден", "code": apperror.ErrCodeNotFound})
		case errors.Is(err, repository.ErrMilestoneNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "этап не найден", "code": apperror.ErrCodeNotFound})
		case errors.Is(err, repository.ErrDisputeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "спор не найден", "code": apperror.ErrCodeNotFound})
		case errors.Is(err, repository.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "пользователь не найден", "code": apperror.ErrCodeNotFound})
		default:
			if logger.Log != nil {
				logger.Log.WithFields(logrus.Fields{
					"error":  err.Error(),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Request error")
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "внутренняя ошибка сервера",
				"code":  apperror.ErrCodeInternal,
			})
		}
	}
}
