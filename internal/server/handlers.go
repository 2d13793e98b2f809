package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/ironsheep/ocr-annotate/internal/blobstore"
	"github.com/ironsheep/ocr-annotate/internal/imaging"
	"github.com/ironsheep/ocr-annotate/internal/pipeline"
)

// uploadField is the multipart field holding the image.
const uploadField = "file"

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "upload.html", gin.H{
		"Title":     "Verificación OCR",
		"Engine":    s.build.Engine,
		"Languages": s.build.Languages,
		"Version":   s.build.Version,
	})
}

// handleUpload stores the posted file and sends the browser to its result.
// Missing files re-prompt with the form.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile(uploadField)
	if err != nil || file.Filename == "" {
		s.logger.Debug("upload without file", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	f, err := file.Open()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to open upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to read upload", err)
		return
	}

	key := blobstore.SanitizeKey(file.Filename)
	if err := s.store.Put(c.Request.Context(), key, data); err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to store upload", err)
		return
	}

	s.logger.Info("upload stored",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("filename", file.Filename),
		zap.String("key", key),
		zap.Int("size", len(data)))

	c.Redirect(http.StatusSeeOther, "/display/"+url.PathEscape(key))
}

// handleDisplay annotates the upload and streams the encoded result.
func (s *Server) handleDisplay(c *gin.Context) {
	key := c.Param("filename")

	res, err := s.pipeline.Process(c.Request.Context(), key)
	if err != nil {
		s.failPipeline(c, key, err)
		return
	}

	c.Header("X-Detections", strconv.Itoa(len(res.Detections)))
	c.Header("X-Skipped-Detections", strconv.Itoa(res.Skipped))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

// handleDetections returns what the engine found without drawing anything.
func (s *Server) handleDetections(c *gin.Context) {
	key := c.Param("filename")

	res, err := s.pipeline.Detect(c.Request.Context(), key)
	if err != nil {
		s.failPipeline(c, key, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type memoryStatus struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
	HeapBytes   uint64  `json:"heap_bytes"`
}

type healthStatus struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Uptime    string        `json:"uptime"`
	GoVersion string        `json:"go_version"`
	Memory    *memoryStatus `json:"memory,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := healthStatus{
		Status:    "ok",
		Version:   s.build.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		GoVersion: runtime.Version(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		status.Memory = &memoryStatus{
			TotalBytes:  vm.Total,
			UsedBytes:   vm.Used,
			UsedPercent: vm.UsedPercent,
			HeapBytes:   ms.HeapAlloc,
		}
	} else {
		s.logger.Debug("memory stats unavailable", zap.Error(err))
		status.Memory = &memoryStatus{HeapBytes: ms.HeapAlloc}
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, s.build)
}

// failPipeline maps pipeline errors to status codes.
func (s *Server) failPipeline(c *gin.Context, key string, err error) {
	switch {
	case errors.Is(err, blobstore.ErrInvalidKey):
		s.fail(c, http.StatusBadRequest, "invalid file name", err)
	case errors.Is(err, blobstore.ErrNotFound):
		s.fail(c, http.StatusNotFound, "file not found: "+key, err)
	case errors.Is(err, imaging.ErrDecode):
		s.fail(c, http.StatusUnprocessableEntity, "file is not a readable image: "+key, err)
	case errors.Is(err, pipeline.ErrDetect):
		s.fail(c, http.StatusBadGateway, "text detection failed", err)
	case errors.Is(err, context.Canceled):
		// The client went away; nobody will read the body.
		c.Status(499)
		_ = c.Error(err)
	default:
		s.fail(c, http.StatusInternalServerError, "processing failed", err)
	}
}

// fail records err for the request log and writes {"error": msg}.
func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg,
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
