package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Remote detects text by posting the image to an EasyOCR-compatible sidecar.
//
// The sidecar receives the PNG body with query parameters lang (comma
// separated), gpu and paragraph=false, and answers with the reader's raw
// readtext output:
//
//	[[[[x0,y0],[x1,y1],[x2,y2],[x3,y3]], "text", 0.93], ...]
//
// Unlike Tesseract, these quads may be rotated.
type Remote struct {
	endpoint string
	cfg      Config
	client   *http.Client
	logger   *zap.Logger
}

// NewRemote prepares a remote detector for cfg.RemoteURL.
func NewRemote(cfg Config, logger *zap.Logger) (*Remote, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote: url is required")
	}
	u, err := url.Parse(cfg.RemoteURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("lang", strings.Join(cfg.Languages, ","))
	q.Set("gpu", strconv.FormatBool(cfg.GPU))
	q.Set("paragraph", "false")
	u.RawQuery = q.Encode()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		endpoint: u.String(),
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Detect sends img to the sidecar and decodes its detections in order.
func (r *Remote) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for remote ocr: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build remote ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote ocr returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var results []remoteResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode remote ocr response: %w", err)
	}

	dets := make([]Detection, len(results))
	for i, res := range results {
		dets[i] = Detection(res)
	}

	r.logger.Debug("remote ocr finished",
		zap.Int("detections", len(dets)),
		zap.Duration("took", time.Since(start)))

	return filterConfidence(dets, r.cfg.MinConfidence), nil
}

// remoteResult decodes one readtext tuple: [box, text, confidence].
type remoteResult Detection

func (r *remoteResult) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 2 {
		return fmt.Errorf("readtext tuple has %d elements, want at least 2", len(tuple))
	}

	var box [][]float64
	if err := json.Unmarshal(tuple[0], &box); err != nil {
		return fmt.Errorf("invalid box: %w", err)
	}
	// Short or long boxes are kept as-is; the annotator rejects them per detection.
	r.Region = make(Quad, 0, len(box))
	for _, p := range box {
		if len(p) != 2 {
			return fmt.Errorf("invalid box point with %d coordinates", len(p))
		}
		r.Region = append(r.Region, Point{X: p[0], Y: p[1]})
	}

	if err := json.Unmarshal(tuple[1], &r.Text); err != nil {
		return fmt.Errorf("invalid text: %w", err)
	}
	if len(tuple) > 2 {
		if err := json.Unmarshal(tuple[2], &r.Confidence); err != nil {
			return fmt.Errorf("invalid confidence: %w", err)
		}
	}
	return nil
}
