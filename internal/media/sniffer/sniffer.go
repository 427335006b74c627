// Package sniffer detects image formats from magic bytes. Uploads are
// accepted only when the sniffed type is a known raster format.
package sniffer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/http"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

var signatures = []struct {
	kind  MediaType
	mime  string
	match func([]byte) bool
}{
	{TypeJPEG, "image/jpeg", isJPEG},
	{TypePNG, "image/png", isPNG},
	{TypeGIF, "image/gif", isGIF},
	{TypeWEBP, "image/webp", isWEBP},
	{TypeAVIF, "image/avif", isAVIF},
}

// DetectHead classifies the leading bytes of a file, typically the first 512.
func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	for _, sig := range signatures {
		if sig.match(head) {
			return Result{Type: sig.kind, MIME: sig.mime}, nil
		}
	}

	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isGIF(head []byte) bool {
	return len(head) >= 6 && (bytes.Equal(head[:6], []byte("GIF87a")) || bytes.Equal(head[:6], []byte("GIF89a")))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

// isAVIF inspects the ftyp box only: the major brand at offset 8 and the
// compatible brands up to the box length. Data past the box is not a brand
// list, so an HEIC or MP4 merely mentioning "avif" later does not match.
func isAVIF(head []byte) bool {
	if len(head) < 12 || !bytes.Equal(head[4:8], []byte("ftyp")) {
		return false
	}
	avif := []byte("avif")
	if bytes.Equal(head[8:12], avif) {
		return true
	}

	boxLen := int(binary.BigEndian.Uint32(head[:4]))
	if boxLen > len(head) {
		boxLen = len(head)
	}
	// compatible brands start after the 4-byte minor version
	for off := 16; off+4 <= boxLen; off += 4 {
		if bytes.Equal(head[off:off+4], avif) {
			return true
		}
	}
	return false
}

// MimeTypeFromHTTP extracts the bare media type from a Content-Type header,
// dropping any parameters.
func MimeTypeFromHTTP(header http.Header) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
