// Package detection locates likely text regions without recognizing them.
//
// It is the fallback used when no OCR engine is available: the result is
// only a set of boxes, and callers label them with empty text.
//
// # Algorithm
//
//  1. Edge map: grayscale gradient against the right and lower neighbor,
//     thresholded at 30 levels.
//  2. Sliding windows of several text-like sizes scan the edge map. A summed
//     area table gives each window's edge count in constant time.
//  3. Windows with medium edge density (5% to 40%) are scored by how much of
//     their edge structure runs horizontally.
//  4. Overlapping candidates are merged into their union.
//
// # Coordinate System
//
// Rectangles are returned in the image's own coordinate space, with an
// inclusive Min and exclusive Max as in image.Rectangle.
//
// # Limitations
//
// The heuristic suits clean, high-contrast scans and screenshots. Photos,
// heavy compression or rotated text produce poor boxes.
package detection
