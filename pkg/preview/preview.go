// Package preview serves the live camera view over HTTP: an MJPEG stream,
// snapshots, the loop status and focus commands. It never touches the
// session; commands are handed to the capture loop over a channel.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/control"
	"github.com/focuscam/focuscam/pkg/overlay"
	"github.com/focuscam/focuscam/pkg/session"
	"github.com/gin-gonic/gin"
)

var logger = logging.NewLogger("focuscam/preview")

var errNoFrame = errors.New("no frame captured yet")

type Config struct {
	Listen string
	// Overlay draws the focus HUD onto served frames.
	Overlay     bool
	JPEGQuality int
	// MaxWidth scales frames down before encoding, 0 keeps the size.
	MaxWidth int
	// ResetFocus is the target of POST /api/focus/reset.
	ResetFocus int
}

// Server is a control.Sink serving the frames it is given.
type Server struct {
	cfg      Config
	commands chan<- control.Command
	engine   *gin.Engine
	http     *http.Server

	mu      sync.RWMutex
	frame   image.Image
	status  control.Status
	seq     uint64
	updated chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, commands chan<- control.Command) *Server {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = jpeg.DefaultQuality
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:      cfg,
		commands: commands,
		engine:   gin.New(),
		updated:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.engine.Use(gin.Recovery(), accessLog())
	s.setupRoutes()
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/stream.mjpg", s.handleStream)
	s.engine.GET("/snapshot.jpg", s.handleSnapshot)

	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/focus", s.handleFocus)
	api.POST("/focus/reset", s.handleFocusReset)
	api.POST("/quit", s.handleQuit)
}

// Handler exposes the routes, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// accessLog logs requests through the package logger instead of gin's
// writer.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Publish stores the latest frame and wakes up streaming clients. The frame
// is copied so the capture side may reuse its buffers.
func (s *Server) Publish(f session.Frame, status control.Status) {
	var lines []string
	if s.cfg.Overlay {
		lines = hud(status)
	}
	img := overlay.Annotate(overlay.Fit(f.Image, s.cfg.MaxWidth), lines...)

	s.mu.Lock()
	s.frame = img
	s.status = status
	s.seq++
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
}

func hud(st control.Status) []string {
	return []string{
		fmt.Sprintf("Focus: %d [%d-%d]", st.Focus, st.FocusRange.Min, st.FocusRange.Max),
		fmt.Sprintf("Frame: %d  %s", st.Frames, st.Backend),
		control.KeyHelp,
	}
}

type snapshot struct {
	frame  image.Image
	status control.Status
	seq    uint64
	// updated is closed by the next Publish.
	updated <-chan struct{}
}

func (s *Server) latest() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{frame: s.frame, status: s.status, seq: s.seq, updated: s.updated}
}

func (s *Server) encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errNoFrame
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// send hands a command to the loop, giving up when the client leaves or the
// server closes.
func (s *Server) send(ctx context.Context, cmd control.Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return http.ErrServerClosed
	}
}

// Start serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("preview listening on http://%s", s.cfg.Listen)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("preview server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		s.Close()
		return err
	}
	return s.Shutdown()
}

// Close ends every open stream.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Shutdown ends open streams and stops the listener gracefully.
func (s *Server) Shutdown() error {
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("preview shutdown: %w", err)
	}
	logger.Info("preview stopped")
	return nil
}
