package handler

import (
	app_errors "chat-relay/internal/errors"
	"chat-relay/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ListSessions returns a page of recent decode sessions.
// GET /api/sessions
func (s *Server) ListSessions(c *gin.Context) {
	page, pageSize := response.ParsePageParams(c)

	rows, total, err := s.SessionLogService.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}

	response.Success(c, response.NewPaginatedResponse(rows, page, pageSize, total))
}

// sessionDetail is the single-session payload including the decrypted
// request body when capture was enabled.
type sessionDetail struct {
	Session     any    `json:"session"`
	RequestBody string `json:"request_body,omitempty"`
}

// GetSession returns one decode session by its session id.
// GET /api/sessions/:session_id
func (s *Server) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		response.Error(c, app_errors.NewValidationError("session_id is required"))
		return
	}

	row, err := s.SessionLogService.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}

	detail := sessionDetail{Session: row}
	if row.RequestBody != "" {
		body, derr := s.SessionLogService.DecryptRequestBody(row)
		if derr != nil {
			logrus.WithError(derr).WithField("session_id", sessionID).Warn("Failed to decrypt captured request body")
		} else {
			detail.RequestBody = body
		}
	}

	response.Success(c, detail)
}
