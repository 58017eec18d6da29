package ingestion_engine

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentID returns the record ID for a chunk's text: the hex MD5 of its
// UTF-8 bytes. Same text, same ID, in every process. Not a security boundary.
func ContentID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
