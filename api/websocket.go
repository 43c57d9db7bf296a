package api

import (
	"errors"
	"net/http"

	"TeethAnnotationServer/annotator"
	"TeethAnnotationServer/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsReadLimit = 20 * 1024 * 1024

var (
	errUnsupportedMessage = errors.New("unsupported message type, send the image as a text message")

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

// GET /ws/process-image: every text frame is an image string, every reply an
// AnnotationResponse.
func (h *Handler) ProcessImageStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 升级失败，不要再写 JSON
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	ctx := c.Request.Context()
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log().Debug("websocket closed", zap.Error(err))
			}
			return
		}
		var resp annotator.AnnotationResponse
		if mt == websocket.TextMessage {
			resp = h.svc.ProcessImage(ctx, annotator.AnnotationRequest{TeethImage: string(msg)})
		} else {
			resp = annotator.FailureResponse(errUnsupportedMessage)
		}
		if err := conn.WriteJSON(resp); err != nil {
			logger.Log().Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}
