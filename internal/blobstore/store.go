package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get when no blob is stored under the key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for keys that neither SanitizeKey nor ResultKey
	// could have produced.
	ErrInvalidKey = errors.New("invalid blob key")
)

// ResultPrefix marks the annotated copy of an upload.
const ResultPrefix = "result_"

// maxKeyLen keeps keys well under common file name limits. Upload keys
// leave room for ResultPrefix so their result keys fit too.
const (
	maxKeyLen       = 200
	maxUploadKeyLen = maxKeyLen - len(ResultPrefix)
)

// Store maps keys to raw bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ResultKey derives the key of the annotated result for an upload key.
func ResultKey(key string) string {
	return ResultPrefix + key
}

// SanitizeKey turns a client-supplied file name into a safe key. Directory
// parts are dropped, leading dots removed and every character outside
// [A-Za-z0-9._-] replaced with '_'. When nothing usable is left a random
// key is generated, keeping the extension if there was one. Long names are
// shortened so that ResultKey of the returned key is still a valid key.
func SanitizeKey(name string) string {
	key, ext := cleanKey(name)
	if len(key) > maxUploadKeyLen {
		key = key[:maxUploadKeyLen-len(ext)] + ext
	}
	return key
}

// cleanKey applies every SanitizeKey rule except the length limit and
// returns the key with its extension.
func cleanKey(name string) (string, string) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := b.String()
	ext := path.Ext(cleaned)
	if ext == "." || len(ext) > 10 {
		ext = ""
	}

	key := strings.TrimLeft(cleaned, ".")
	if strings.Trim(strings.TrimSuffix(key, ext), "_.") == "" {
		return "upload-" + uuid.NewString() + ext, ext
	}
	return key, ext
}

// validKey accepts keys SanitizeKey could have produced, and the result
// keys derived from them.
func validKey(key string) bool {
	if key == "" || len(key) > maxKeyLen {
		return false
	}
	cleaned, _ := cleanKey(key)
	return cleaned == key
}
