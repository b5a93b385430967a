package media

import "strings"

// FormatImageURI normalises an image reference for display. Absolute URLs and data URIs
// pass through, bare base64 becomes a JPEG data URI and root-relative paths are served
// by devHost.
func FormatImageURI(uri, devHost string) string {
	switch {
	case uri == "":
		return ""
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	case strings.HasPrefix(uri, "data:image"):
		return uri
	case base64Pattern.MatchString(uri):
		return "data:image/jpeg;base64," + uri
	case strings.HasPrefix(uri, "/"):
		return strings.TrimRight(devHost, "/") + uri
	default:
		return uri
	}
}
