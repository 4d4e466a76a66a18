package constants

import "strings"

// RequestExtension is the file extension audit request files must carry.
const RequestExtension = "json"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
