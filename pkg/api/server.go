// Package api provides the REST API server for midiroll
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/james-see/midiroll/pkg/config"
	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/converter/formats"
	"github.com/james-see/midiroll/pkg/logging"
	"github.com/james-see/midiroll/pkg/pianoroll"
	"github.com/james-see/midiroll/pkg/synth"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title midiroll API
// @version 1.0
// @description API for converting MIDI files to and from piano-roll matrices
// @host localhost:8080
// @BasePath /api/v1

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	maxUploadBytes  = 32 << 20
)

// Server serves the conversion API
type Server struct {
	cfg      *config.Config
	logger   *log.Logger
	renderer *synth.Renderer // nil when no soundfont is configured
	engine   *gin.Engine
}

// NewServer builds the router. A configured soundfont is loaded up front so
// a bad path fails at startup rather than on the first render.
func NewServer(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{cfg: cfg, logger: logger}
	if cfg.SoundFont != "" {
		r, err := synth.NewFromFile(cfg.SoundFont, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = maxUploadBytes
	r.Use(gin.Recovery(), s.requestLogger())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/grid", s.showGrid)
		v1.GET("/formats", listFormats)
		v1.POST("/encode", s.handleEncode)
		v1.POST("/decode", s.handleDecode)
		v1.POST("/roundtrip", s.handleRoundTrip)
		v1.POST("/heatmap", s.handleHeatmap)
		v1.POST("/render", s.handleRender)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine = r
	return s, nil
}

// Handler returns the router wrapped in CORS handling
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{requestIDHeader, "X-Notes-Encoded", "X-Notes-Skipped", "X-Notes-Drums"},
	}).Handler(s.engine)
}

// StartServer starts the API server on the configured port
func StartServer(cfg *config.Config, logger *log.Logger) error {
	s, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	s.logger.Info("listening", "addr", addr, "grid", cfg.Grid(), "render", s.renderer != nil)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)

		logger := s.logger.With("request_id", id)
		c.Set(loggerKey, logger)

		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func requestLog(c *gin.Context) *log.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*log.Logger); ok {
			return l
		}
	}
	return log.Default()
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midiroll",
	})
}

// showGrid godoc
// @Summary Show the quantization grid
// @Description Returns the server's default time step, horizon and matrix shape
// @Tags info
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/v1/grid [get]
func (s *Server) showGrid(c *gin.Context) {
	g := s.cfg.Grid()
	c.JSON(http.StatusOK, gin.H{
		"time_step": g.TimeStep,
		"max_time":  g.MaxTime,
		"steps":     g.StepCount(),
		"pitches":   pianoroll.PitchCount,
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported file formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{"midi", "roll", "npy", "png", "wav"},
		"conversions": converter.GetSupportedConversions(),
	})
}

// handleEncode godoc
// @Summary Encode MIDI as a piano-roll matrix
// @Description Upload a MIDI file and receive a .roll or .npy matrix
// @Tags convert
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "MIDI file to encode"
// @Param format query string false "roll (default) or npy"
// @Param time_step query number false "Seconds per step"
// @Param max_time query number false "Horizon in seconds"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/encode [post]
func (s *Server) handleEncode(c *gin.Context) {
	to := converter.Format(c.DefaultQuery("format", string(converter.FormatRoll)))
	if !to.IsMatrix() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported matrix format %q", to)})
		return
	}
	s.handleConversion(c, converter.FormatMIDI, to)
}

// handleDecode godoc
// @Summary Decode a piano-roll matrix to MIDI
// @Description Upload a .roll or .npy matrix and receive a MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "Matrix file to decode"
// @Param time_step query number false "Seconds per step (npy only)"
// @Param max_time query number false "Horizon in seconds (npy only)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/decode [post]
func (s *Server) handleDecode(c *gin.Context) {
	data, name, ok := readUpload(c)
	if !ok {
		return
	}
	from := converter.DetectFormatFromContent(data)
	if !from.IsMatrix() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload is not a .roll or .npy matrix"})
		return
	}
	s.convert(c, data, name, from, converter.FormatMIDI)
}

// handleRoundTrip godoc
// @Summary Encode and decode a MIDI file
// @Description Upload a MIDI file and receive it after quantization to the grid
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI file"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/roundtrip [post]
func (s *Server) handleRoundTrip(c *gin.Context) {
	s.handleConversion(c, converter.FormatMIDI, converter.FormatMIDI)
}

// handleHeatmap godoc
// @Summary Render a heat map
// @Description Upload a MIDI, .roll or .npy file and receive a PNG heat map
// @Tags render
// @Accept multipart/form-data
// @Produce image/png
// @Param file formData file true "Input file"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/heatmap [post]
func (s *Server) handleHeatmap(c *gin.Context) {
	s.handleConversion(c, converter.FormatUnknown, converter.FormatPNG)
}

// handleRender godoc
// @Summary Synthesise MIDI to WAV
// @Description Upload a MIDI file and receive 16-bit stereo audio
// @Tags render
// @Accept multipart/form-data
// @Produce audio/wav
// @Param file formData file true "MIDI file"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/render [post]
func (s *Server) handleRender(c *gin.Context) {
	if s.renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no soundfont configured"})
		return
	}
	data, name, ok := readUpload(c)
	if !ok {
		return
	}
	if err := converter.ValidateMIDI(data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// the WAV encoder needs to seek back to patch chunk sizes
	tmp, err := os.CreateTemp("", "midiroll-*.wav")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := s.renderer.RenderWAV(data, tmp); err != nil {
		requestLog(c).Error("render failed", "err", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	wav, err := io.ReadAll(tmp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName(name, converter.FormatWAV)))
	c.Data(http.StatusOK, "audio/wav", wav)
}

// handleConversion reads the upload and converts it. A FormatUnknown
// source is sniffed from the content.
func (s *Server) handleConversion(c *gin.Context, from, to converter.Format) {
	data, name, ok := readUpload(c)
	if !ok {
		return
	}
	if from == converter.FormatUnknown {
		from = converter.DetectFormatFromContent(data)
	}
	s.convert(c, data, name, from, to)
}

func (s *Server) convert(c *gin.Context, data []byte, name string, from, to converter.Format) {
	grid, err := s.gridFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv := converter.New(grid, formats.NewRoll(), formats.NewNPY())
	conv.SetLogger(requestLog(c))
	conv.SetHeatmapOptions(s.cfg.HeatmapOptions())

	result, report, err := conv.Convert(data, from, to)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if report != nil {
		c.Header("X-Notes-Encoded", strconv.Itoa(report.Encoded))
		c.Header("X-Notes-Skipped", strconv.Itoa(report.Skipped()))
		c.Header("X-Notes-Drums", strconv.Itoa(report.Drums))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName(name, to)))
	c.Data(http.StatusOK, contentType(to), result)
}

func readUpload(c *gin.Context) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	return data, header.Filename, true
}

// gridFromQuery applies time_step and max_time overrides to the configured grid
func (s *Server) gridFromQuery(c *gin.Context) (pianoroll.Grid, error) {
	g := s.cfg.Grid()
	for key, dst := range map[string]*float64{"time_step": &g.TimeStep, "max_time": &g.MaxTime} {
		raw, ok := c.GetQuery(key)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return g, fmt.Errorf("invalid %s %q", key, raw)
		}
		*dst = v
	}
	return g, g.Validate()
}

func statusFor(err error) int {
	if errors.Is(err, pianoroll.ErrShapeMismatch) || errors.Is(err, pianoroll.ErrOutOfRangePitch) ||
		errors.Is(err, pianoroll.ErrInvalidIntensity) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func outputName(input string, to converter.Format) string {
	base := input
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "converted"
	}
	return base + to.Extension()
}

func contentType(f converter.Format) string {
	switch f {
	case converter.FormatMIDI:
		return "audio/midi"
	case converter.FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
