// Package proxy implements the relay endpoint bridging a host chat client to
// the upstream chat-completion backend through the streaming decoder.
package proxy

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"chat-relay/internal/decoder"
	app_errors "chat-relay/internal/errors"
	"chat-relay/internal/models"
	"chat-relay/internal/response"
	"chat-relay/internal/services"
	"chat-relay/internal/types"
	"chat-relay/internal/upstream"
	"chat-relay/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxUpstreamErrorBodySize = 64 * 1024 // 64KB

const chatCompletionsPath = "/v1/chat/completions"

// Server handles relayed chat-completion requests.
type Server struct {
	backend     *upstream.Backend
	sessionLogs *services.SessionLogService
	relayConfig types.RelayConfig
	markers     decoder.Markers
}

// NewServer creates the relay server.
func NewServer(configManager types.ConfigManager, backend *upstream.Backend, sessionLogs *services.SessionLogService) *Server {
	return &Server{
		backend:     backend,
		sessionLogs: sessionLogs,
		relayConfig: configManager.GetRelayConfig(),
		markers:     decoder.DefaultMarkers(),
	}
}

// HandleChatCompletion accepts an OpenAI-style chat completion request,
// forwards it upstream as a streaming request, and re-emits the decoded
// output parts to the client as SSE events.
func (ps *Server) HandleChatCompletion(c *gin.Context) {
	startTime := time.Now()

	buf := utils.GetBuffer()
	defer utils.PutBuffer(buf)

	if _, err := buf.ReadFrom(c.Request.Body); err != nil {
		logrus.Errorf("Failed to read request body: %v", err)
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadRequest, "Failed to read request body"))
		return
	}
	c.Request.Body.Close()
	bodyBytes := buf.Bytes()

	if !gjson.ValidBytes(bodyBytes) || !gjson.ParseBytes(bodyBytes).IsObject() {
		response.Error(c, app_errors.ErrInvalidJSON)
		return
	}
	model := gjson.GetBytes(bodyBytes, "model").String()
	if model == "" {
		response.Error(c, app_errors.NewValidationError("model is required"))
		return
	}

	// The decoder only understands event streams, so non-streaming requests
	// are upgraded before forwarding.
	finalBody, err := sjson.SetBytes(bodyBytes, "stream", true)
	if err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, "Failed to rewrite request body"))
		return
	}

	resp, err := ps.backend.Do(c.Request.Context(), chatCompletionsPath, finalBody, c.GetHeader("Authorization"))
	if err != nil {
		ps.handleUpstreamFailure(c, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ps.handleUpstreamErrorResponse(c, resp)
		return
	}

	entry := &models.SessionLog{
		SessionID:    uuid.New().String(),
		Model:        model,
		ClientIP:     c.ClientIP(),
		UpstreamAddr: ps.backend.BaseURL(),
		StatusCode:   http.StatusOK,
	}
	ps.streamDecoded(c, resp, entry, startTime, finalBody)
}

// handleUpstreamFailure maps connection-level upstream errors to API errors.
func (ps *Server) handleUpstreamFailure(c *gin.Context, err error) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		response.Error(c, app_errors.ErrUpstreamTimeout)
	case app_errors.IsIgnorableError(err):
		logrus.Debugf("Client disconnected before upstream responded: %v", err)
		c.Abort()
	default:
		logUpstreamError("connecting to upstream", err)
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadGateway, "Failed to reach upstream service"))
	}
}

// handleUpstreamErrorResponse relays a non-200 upstream response as a JSON
// error, decompressing and parsing the upstream body for its message.
func (ps *Server) handleUpstreamErrorResponse(c *gin.Context, resp *http.Response) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamErrorBodySize))
	if err != nil {
		logUpstreamError("reading upstream error body", err)
	}
	if decoded, derr := utils.DecompressResponse(resp.Header.Get("Content-Encoding"), body); derr == nil {
		body = decoded
	}

	message := app_errors.ParseUpstreamError(body)
	logrus.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"message":     message,
	}).Warn("Upstream returned an error response")
	response.Error(c, app_errors.NewAPIErrorWithUpstream(resp.StatusCode, "UPSTREAM_ERROR", message))
}

// logUpstreamError provides a centralized way to log errors from upstream interactions.
func logUpstreamError(context string, err error) {
	if err == nil {
		return
	}
	if app_errors.IsIgnorableError(err) {
		logrus.Debugf("Ignorable upstream error in %s: %v", context, err)
	} else {
		logrus.Errorf("Upstream error in %s: %v", context, err)
	}
}
