package preview

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/focuscam/focuscam/pkg/control"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func abort(c *gin.Context, code int, kind string, err error) {
	c.AbortWithStatusJSON(code, errorResponse{
		Error:     kind,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

type focusRequest struct {
	Value *int `json:"value"`
	Delta *int `json:"delta"`
}

type commandResponse struct {
	Command string `json:"command"`
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>focuscam</title></head>
<body>
<img src="/stream.mjpg" alt="live view">
<p>
<button onclick="post('/api/focus', {delta: -5})">Focus -</button>
<button onclick="post('/api/focus', {delta: 5})">Focus +</button>
<button onclick="post('/api/focus/reset')">Reset</button>
<button onclick="post('/api/quit')">Quit</button>
</p>
<script>
function post(url, body) {
  fetch(url, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})});
}
</script>
</body>
</html>
`

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.latest()
	if snap.frame == nil {
		abort(c, http.StatusServiceUnavailable, "no_frame", errNoFrame)
		return
	}
	c.JSON(http.StatusOK, snap.status)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	data, err := s.encode(s.latest().frame)
	if errors.Is(err, errNoFrame) {
		abort(c, http.StatusServiceUnavailable, "no_frame", err)
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, "encode_failed", err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", data)
}

// handleStream writes every published frame as a part of a
// multipart/x-mixed-replace response until the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	mw := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Type", "image/jpeg")

	clientGone := c.Request.Context().Done()
	var last uint64
	for {
		snap := s.latest()
		if snap.frame != nil && snap.seq != last {
			last = snap.seq

			data, err := s.encode(snap.frame)
			if err != nil {
				logger.Errorf("encode frame: %v", err)
				return
			}
			partHeader.Set("Content-Length", strconv.Itoa(len(data)))
			w, err := mw.CreatePart(partHeader)
			if err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			c.Writer.Flush()
		}

		select {
		case <-snap.updated:
		case <-clientGone:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) handleFocus(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	var cmd control.Command
	switch {
	case req.Value != nil && req.Delta != nil:
		abort(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("value and delta are exclusive"))
		return
	case req.Value != nil:
		cmd = control.Set(*req.Value)
	case req.Delta != nil:
		cmd = control.Delta(*req.Delta)
	default:
		abort(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("value or delta is required"))
		return
	}
	s.command(c, cmd)
}

func (s *Server) handleFocusReset(c *gin.Context) {
	s.command(c, control.Reset(s.cfg.ResetFocus))
}

func (s *Server) handleQuit(c *gin.Context) {
	s.command(c, control.QuitCommand)
}

func (s *Server) command(c *gin.Context, cmd control.Command) {
	if err := s.send(c.Request.Context(), cmd); err != nil {
		abort(c, http.StatusServiceUnavailable, "not_delivered", err)
		return
	}
	c.JSON(http.StatusAccepted, commandResponse{Command: cmd.String()})
}
