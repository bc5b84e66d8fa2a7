package checksum

import (
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// BytesChecksum hashes a whole uploaded file.
func BytesChecksum(data []byte) string {
	digest := xxhash.New()
	digest.Write(data)

	return hex.EncodeToString(digest.Sum(nil))
}

// CalculateHash hashes one parsed row. Cells are joined with the unit
// separator so that "a,b" + "c" and "a" + "b,c" differ.
func CalculateHash(record []string) string {
	lineContent := strings.Join(record, "\x1f")

	digest := xxhash.New()
	digest.Write([]byte(lineContent))

	return hex.EncodeToString(digest.Sum(nil))
}
