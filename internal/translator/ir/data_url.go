package ir

import "strings"

// ParseDataURL splits a "data:<mime>;base64,<data>" URI into its mime type
// and base64 payload. It reports ok=false for any non-data URL (an
// http(s) URL a provider must fetch itself rather than inline).
func ParseDataURL(url string) (mimeType, data string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "", "", false
	}
	rest := url[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", false
	}
	meta, payload := rest[:comma], rest[comma+1:]
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return mime, payload, true
}

// ResolveImagePart fills in MimeType/Data from URL when the part carries a
// data URL but no decoded payload yet (the common shape for a freshly
// parsed OpenAI "image_url" content part).
func ResolveImagePart(img *ImagePart) {
	if img == nil || img.Data != "" || img.URL == "" {
		return
	}
	if mime, data, ok := ParseDataURL(img.URL); ok {
		img.MimeType, img.Data = mime, data
	}
}
