// Package blobstore keeps uploaded images and annotated results in a flat
// key space.
//
// Keys are file names. Uploads live under their sanitized name and results
// under ResultKey(name). Writers race: the last Put for a key wins and no
// locking is done.
package blobstore
