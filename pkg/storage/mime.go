package storage

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

const MIMEOctetStream = "application/octet-stream"

// sniffLen is how much http.DetectContentType looks at.
const sniffLen = 512

var extByMIME = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"image/bmp":        ".bmp",
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"audio/mpeg":       ".mp3",
	"audio/ogg":        ".ogg",
	"application/pdf":  ".pdf",
	"application/json": ".json",
	"application/zip":  ".zip",
	"text/plain":       ".txt",
}

// ExtFromMIME returns the extension stored objects of mimeType get, or "".
func ExtFromMIME(mimeType string) string {
	return extByMIME[baseMIME(mimeType)]
}

// IsImageMIME reports whether mimeType can be sent as a photo.
func IsImageMIME(mimeType string) bool {
	kind, _, _ := strings.Cut(baseMIME(mimeType), "/")
	return kind == "image"
}

// detectMIMEWithReader sniffs r and returns a body positioned at the start.
// Seekable input is rewound, anything else is buffered in full.
func detectMIMEWithReader(r io.Reader) (string, io.ReadSeeker) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, _ := io.ReadAll(r)
		rs = bytes.NewReader(data)
	}

	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(rs, head)
	_, _ = rs.Seek(0, io.SeekStart)
	if n == 0 {
		return MIMEOctetStream, rs
	}
	return http.DetectContentType(head[:n]), rs
}

// baseMIME lowercases and drops parameters such as charset.
func baseMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}
