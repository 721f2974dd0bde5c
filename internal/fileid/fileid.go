// Package fileid derives stable course identifiers from directory paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "course:"

// CourseID returns a stable identifier for a course directory. The path is cleaned,
// so trailing slashes and "." elements do not change the result.
func CourseID(dir string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(dir)))
	return prefix + hex.EncodeToString(hash[:8])
}
