// Package imaging holds the image plumbing shared by the pipeline and the
// annotator: decoding uploaded bytes, encoding results in the upload's own
// format, making a mutable RGBA copy, and parsing palette colors.
//
// # Coordinate System
//
// Images handed to the rest of the service always have their origin at
// (0,0). X increases rightward and Y increases downward. CloneRGBA rebases
// images whose bounds do not start at the origin.
//
// # Formats
//
// Decoding accepts everything disintegration/imaging registers: PNG, JPEG,
// GIF, BMP and TIFF. JPEG orientation tags are applied while decoding so
// detections line up with what a browser shows.
//
// Encoding picks the format from the stored file name. GIF and unknown
// extensions are written as PNG because a GIF palette would shift the
// annotation colors.
package imaging
