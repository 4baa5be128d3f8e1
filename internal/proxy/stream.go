package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chat-relay/internal/decoder"
	app_errors "chat-relay/internal/errors"
	"chat-relay/internal/models"
	"chat-relay/internal/response"
	"chat-relay/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// streamErrorEvent is the terminal event written when the decode aborts
// after parts have already been flushed to the client.
type streamErrorEvent struct {
	Kind    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// streamDecoded drives the decoder over the upstream body and re-emits each
// output part to the client as an SSE event, flushed as soon as it is
// produced.
func (ps *Server) streamDecoded(c *gin.Context, resp *http.Response, entry *models.SessionLog, startTime time.Time, requestBody []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		logrus.Error("Streaming unsupported by the response writer")
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, "Streaming unsupported"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	capture := ps.relayConfig.EnableSessionLogging
	var parts []decoder.Part

	session := decoder.NewSession(ps.markers, func(p decoder.Part) error {
		switch p.Kind {
		case decoder.PartText:
			entry.TextChars += len(p.Text)
		case decoder.PartThinking:
			entry.ThinkingChars += len(p.Text)
		case decoder.PartToolCall:
			entry.ToolCalls++
		}
		if capture {
			parts = append(parts, p)
		}
		return writeEvent(c.Writer, flusher, p)
	})

	err := session.Decode(c.Request.Context(), resp.Body)

	entry.FinishReason = finishReasonString(session.FinishReason())
	entry.DroppedLines = session.DroppedLines()
	entry.DurationMs = time.Since(startTime).Milliseconds()

	if err != nil {
		// The error_message column is varchar(2048).
		entry.ErrorMessage = utils.TruncateString(err.Error(), 2048)
		switch {
		case errors.Is(err, decoder.ErrProtocolViolation):
			entry.StatusCode = http.StatusBadGateway
			logrus.WithFields(logrus.Fields{
				"session_id": entry.SessionID,
				"model":      entry.Model,
			}).Error("Upstream violated the tool-call streaming protocol")
			writeErrorEvent(c.Writer, flusher, app_errors.ErrStreamProtocol.Code, err.Error())
		case app_errors.IsIgnorableError(err):
			logrus.Debugf("Stream ended early: %v", err)
		default:
			logUpstreamError("decoding upstream stream", err)
			writeErrorEvent(c.Writer, flusher, app_errors.ErrBadGateway.Code, err.Error())
		}
	} else if werr := writeDone(c.Writer, flusher); werr != nil {
		logUpstreamError("writing stream terminator", werr)
	}

	ps.recordSession(entry, parts, requestBody)
}

// writeEvent writes one decoded part as an SSE data event and flushes it.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, p decoder.Part) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeErrorEvent(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	payload, err := json.Marshal(streamErrorEvent{Kind: "error", Code: code, Message: message})
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		logUpstreamError("writing stream error event", err)
		return
	}
	flusher.Flush()
}

func writeDone(w http.ResponseWriter, flusher http.Flusher) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// recordSession queues the session summary for asynchronous persistence.
func (ps *Server) recordSession(entry *models.SessionLog, parts []decoder.Part, requestBody []byte) {
	if !ps.relayConfig.EnableSessionLogging || ps.sessionLogs == nil {
		return
	}
	if len(parts) > 0 {
		if raw, err := json.Marshal(parts); err == nil {
			entry.Parts = datatypes.JSON(raw)
		}
	}
	if ps.relayConfig.EnableRequestBodyLogging {
		entry.RequestBody = string(requestBody)
	}
	ps.sessionLogs.Record(entry)
}

func finishReasonString(fr decoder.FinishReason) string {
	switch fr {
	case decoder.FinishToolCalls:
		return "tool_calls"
	case decoder.FinishStop:
		return "stop"
	case decoder.FinishOther:
		return "other"
	default:
		return ""
	}
}
