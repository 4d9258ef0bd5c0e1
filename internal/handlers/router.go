package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/attempt-engine/internal/services"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	tokens         TokenParser
	logger         utils.Logger
}

// NewHandlerManager wires the HTTP surface. A nil TokenParser disables
// bearer-token checks in favour of the X-Student-ID header.
func NewHandlerManager(
	manager *services.SessionManager,
	validator *utils.Validator,
	tokens TokenParser,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(manager, validator, logger),
		tokens:         tokens,
		logger:         logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.tokens, hm.logger))
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)

			// Questions and code runs
			sessions.GET("/:id/questions/:question", hm.sessionHandler.GetQuestion)
			sessions.POST("/:id/questions/:question/run", hm.sessionHandler.RunCode)
			sessions.GET("/:id/questions/:question/result", hm.sessionHandler.GetResult)

			// Answers
			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SetAnswer)
			sessions.DELETE("/:id/answers/:question_id", hm.sessionHandler.ClearAnswer)
			sessions.PUT("/:id/answers/:question_id/blanks/:blank", hm.sessionHandler.SetBlank)

			// Submission
			sessions.GET("/:id/submit-preview", hm.sessionHandler.SubmitPreview)
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.GET("/:id/review.xlsx", hm.sessionHandler.ExportReview)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "attempt-engine",
	})
}
