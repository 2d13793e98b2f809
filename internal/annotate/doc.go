// Package annotate burns OCR detections onto an image so a person can check
// what the engine found.
//
// Each detection gets, in this order:
//
//   - a filled label band 23 pixels tall above the segment p0..p1
//   - the recognized text in white, baseline 3 pixels above p0
//   - a 2 pixel outline from p0 to p2
//   - a filled marker at each corner: blue, green, red, yellow for p0..p3
//
// Detections are drawn strictly in input order, so later ones cover earlier
// ones where they overlap. The colors and offsets are part of the output
// format and only change through an explicit Palette or Option.
package annotate
