package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewDocumentID builds an uploaded-document id from the current time plus a
// short random suffix. The suffix is not checked against existing ids, so a
// collision is theoretically possible under rapid concurrent uploads within
// the same millisecond.
func NewDocumentID(now time.Time) string {
	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("doc_%d_%s", now.UnixMilli(), hex.EncodeToString(suffix))
}
