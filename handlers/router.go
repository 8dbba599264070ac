package handlers

import (
	"clinical-annotator/logging"
	"clinical-annotator/web"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with every route of the annotation server
func NewRouter(annotationHandler *AnnotationHandler, apiHandler *APIHandler, logger *zap.Logger) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(logging.GinLogger(logger), logging.GinRecovery(logger))
	r.SetHTMLTemplate(tmpl)

	// Health check endpoint
	r.GET("/health", apiHandler.Health)

	// Setup
	r.GET("/", annotationHandler.SetupPage)
	r.POST("/setup", annotationHandler.StartSetup)

	// Annotation interface
	annotate := r.Group("/annotate", annotationHandler.RequireSession)
	{
		annotate.GET("", annotationHandler.AnnotatePage)
		annotate.POST("/next", annotationHandler.Next)
		annotate.POST("/previous", annotationHandler.Previous)
		annotate.POST("/goto/:index", annotationHandler.GoTo)
		annotate.POST("/submit", annotationHandler.Submit)
		annotate.POST("/keywords", annotationHandler.UpdateKeywords)
		annotate.POST("/change-setup", annotationHandler.ChangeSetup)
		annotate.GET("/download", annotationHandler.Download)
	}

	// API routes
	api := r.Group("/api")
	{
		api.POST("/highlight", apiHandler.Highlight)
		api.GET("/documents", apiHandler.ListDocuments)
		api.DELETE("/documents/:name", apiHandler.DeleteDocument)
	}

	return r, nil
}
