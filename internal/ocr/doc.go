// Package ocr defines the detection data model and the engines that
// produce it.
//
// A Detection is a quadrilateral Region plus the recognized Text. Engines
// implement Detector:
//
//   - Tesseract: local Tesseract through gosseract (requires cgo and the
//     tesseract-ocr libraries with training data for each language).
//   - Remote: an EasyOCR-compatible HTTP sidecar, which can return rotated
//     quads and honors the GPU flag.
//   - Heuristic: edge-density text regions with no recognition, for hosts
//     without an OCR engine.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-spa
//   - macOS: brew install tesseract tesseract-lang
//
// # Winding
//
// Quads are expected in top-left, top-right, bottom-right, bottom-left order.
// Tesseract and Heuristic build axis-aligned quads in that order; Remote
// passes the sidecar's order through untouched.
//
// # Configuration
//
// Config is built once at process start and passed by value. Languages are
// engine-specific codes: Tesseract uses "spa"/"eng", EasyOCR uses "es"/"en".
package ocr
