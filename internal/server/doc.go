// Package server exposes the annotation pipeline over HTTP.
//
// # Routes
//
//   - GET  /                             upload form
//   - POST /                             upload one image in form field "file"
//   - GET  /display/:filename            annotate a stored upload and stream the result
//   - GET  /api/v1/detections/:filename  detections as JSON, nothing stored
//   - GET  /health                       liveness and memory usage
//   - GET  /version                      build information
//   - GET  /metrics                      Prometheus exposition
//
// A POST without a file, or with an empty file name, redirects back to the
// form. A successful upload is stored under a sanitized key and redirects
// to /display/<key>.
//
// # Errors
//
// Failures while displaying are reported as JSON {"error": "..."}:
//
//   - 400 the file name is not a valid key
//   - 404 no upload is stored under the key
//   - 422 the stored bytes are not a decodable image
//   - 502 the OCR engine failed
//   - 500 anything else
package server
