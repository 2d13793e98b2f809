package server

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ironsheep/ocr-annotate/internal/blobstore"
	"github.com/ironsheep/ocr-annotate/internal/metrics"
	"github.com/ironsheep/ocr-annotate/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string   `json:"version"`
	BuildTime string   `json:"build_time"`
	GitCommit string   `json:"git_commit"`
	Engine    string   `json:"engine"`
	Languages []string `json:"languages"`
}

// Options configures a Server.
type Options struct {
	Store    blobstore.Store
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Build    BuildInfo

	// Mode is the gin mode: "debug", "release" or "test".
	Mode string

	// MaxUpload bounds the multipart memory per request, in bytes.
	MaxUpload int64
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	store    blobstore.Store
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	metrics  *metrics.Metrics
	build    BuildInfo
	started  time.Time
	engine   *gin.Engine
}

// New builds the router. It does not start listening.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		logger:   logger.Named("http"),
		metrics:  opts.Metrics,
		build:    opts.Build,
		started:  time.Now(),
	}

	r := gin.New()
	if opts.MaxUpload > 0 {
		r.MaxMultipartMemory = opts.MaxUpload
	}
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(s.logger))
	r.Use(s.metrics.Middleware())

	r.GET("/", s.handleIndex)
	r.POST("/", s.handleUpload)
	r.GET("/display/:filename", s.handleDisplay)
	r.GET("/health", s.handleHealth)
	r.GET("/version", s.handleVersion)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/detections/:filename", s.handleDetections)
	}

	s.engine = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
