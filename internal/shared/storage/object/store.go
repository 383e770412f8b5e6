package object

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"
)

// ObjectStore saves and retrieves binary objects by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SourceKey is the key under which a generation's uploaded photo is stored.
// User IDs are hashed so keys do not leak identifiers.
func SourceKey(userID, generationID, contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}
	return path.Join("sources", userSegment(userID), generationID+ext)
}

func userSegment(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}
