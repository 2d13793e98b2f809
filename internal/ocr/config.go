package ocr

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrEngineUnavailable is returned when the selected engine was not
// compiled into this binary.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine names accepted in Config.Engine.
const (
	EngineTesseract = "tesseract"
	EngineRemote    = "remote"
	EngineHeuristic = "heuristic"
)

// Granularity levels accepted in Config.Level.
const (
	LevelWord  = "word"
	LevelLine  = "line"
	LevelBlock = "block"
)

// Config holds the process-wide OCR settings. It is built once at startup
// and passed by value to the engine constructors.
type Config struct {
	// Engine selects the implementation: "tesseract", "remote" or "heuristic".
	Engine string `mapstructure:"engine"`

	// Languages are engine-specific language codes ("spa" for Tesseract,
	// "es" for EasyOCR-style sidecars).
	Languages []string `mapstructure:"languages"`

	// GPU requests hardware acceleration. Only the remote engine honors it.
	GPU bool `mapstructure:"gpu"`

	// Level is the Tesseract iterator granularity: "word", "line" or "block".
	Level string `mapstructure:"level"`

	// MinConfidence drops detections scored below it (0 keeps everything).
	MinConfidence float64 `mapstructure:"min_confidence"`

	// TessdataPrefix overrides Tesseract's training data location.
	TessdataPrefix string `mapstructure:"tessdata_prefix"`

	// RemoteURL is the sidecar endpoint used by the remote engine.
	RemoteURL string `mapstructure:"remote_url"`

	// Timeout bounds a single remote detection call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig mirrors the reference deployment: Spanish, CPU only.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineTesseract,
		Languages: []string{"spa"},
		GPU:       false,
		Level:     LevelLine,
		Timeout:   60 * time.Second,
	}
}

// Validate reports configuration errors before any engine is built.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineTesseract, EngineHeuristic:
	case EngineRemote:
		if c.RemoteURL == "" {
			return fmt.Errorf("ocr: engine %q requires remote_url", c.Engine)
		}
	default:
		return fmt.Errorf("ocr: unknown engine %q", c.Engine)
	}
	if c.Engine != EngineHeuristic && len(c.Languages) == 0 {
		return errors.New("ocr: at least one language is required")
	}
	switch c.Level {
	case "", LevelWord, LevelLine, LevelBlock:
	default:
		return fmt.Errorf("ocr: unknown level %q", c.Level)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("ocr: min_confidence %v outside [0,1]", c.MinConfidence)
	}
	return nil
}

// NewDetector builds the engine selected by cfg.Engine.
func NewDetector(cfg Config, logger *zap.Logger) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ocr")

	switch cfg.Engine {
	case EngineTesseract:
		t, err := NewTesseract(cfg, logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	case EngineRemote:
		r, err := NewRemote(cfg, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return NewHeuristic(cfg), nil
	}
}

// filterConfidence drops detections scored below threshold, keeping input order.
func filterConfidence(dets []Detection, threshold float64) []Detection {
	if threshold <= 0 {
		return dets
	}
	out := dets[:0]
	for _, d := range dets {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}
