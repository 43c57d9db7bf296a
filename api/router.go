package api

import (
	"net/http"

	"TeethAnnotationServer/annotator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *annotator.Service
}

func NewHandler(svc *annotator.Service) *Handler {
	return &Handler{svc: svc}
}

func SetupRouter(svc *annotator.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORS())

	h := NewHandler(svc)
	r.POST("/process-image/", h.ProcessImage)
	r.GET("/ws/process-image", h.ProcessImageStream)
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/model", h.ModelInfo)
	return r
}

// POST /process-image/
func (h *Handler) ProcessImage(c *gin.Context) {
	var body annotator.AnnotationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		// 仅缺少字段、null 或非法 JSON 返回 422
		c.JSON(http.StatusUnprocessableEntity, annotator.FailureResponse(err))
		return
	}
	// failures are reported in the body, never through the status code
	c.JSON(http.StatusOK, h.svc.ProcessImage(c.Request.Context(), body.Request()))
}

func (h *Handler) ModelInfo(c *gin.Context) {
	info := h.svc.Backend().CheckConfig()
	c.JSON(http.StatusOK, gin.H{
		"model_id":   info.ModelID,
		"backend":    info.Backend,
		"names":      info.Names,
		"confidence": h.svc.Confidence(),
	})
}
