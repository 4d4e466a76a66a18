package ingest

import (
	"path/filepath"
	"strings"

	"github.com/oakmoor/jobsheet-audit/constants"
)

// IsRequestFile reports whether path names an audit request file.
func IsRequestFile(path string) bool {
	return constants.NormalizeExt(filepath.Ext(path)) == constants.RequestExtension
}

// IsHidden reports whether a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
