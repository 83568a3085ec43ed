package api

import (
	"embed"
	"html/template"

	"videoquery/config"
	"videoquery/task"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

func SetupRouter(analyzer Analyzer, tm *task.Manager, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(templatesFS, "templates/*.html")))
	h := NewHandler(analyzer, tm, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Single-page UI
	r.GET("/", h.handleIndex)
	r.POST("/analyze", h.handleAnalyzePage)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/call", h.handleSyncCall)

		v1.POST("/tasks", h.handleCreateTask)
		v1.GET("/tasks", h.handleListTasks)
		v1.GET("/tasks/:taskId", h.handleGetTaskStatus)
		v1.PATCH("/tasks/:taskId/cancel", h.handleCancelTask)
	}
	return r
}
