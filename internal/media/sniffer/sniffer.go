package sniffer

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"strings"
)

type ImageType string

const (
	TypeJPEG ImageType = "jpeg"
	TypePNG  ImageType = "png"
	TypeGIF  ImageType = "gif"
	TypeWEBP ImageType = "webp"
)

// HeadSize is how many leading bytes Detect inspects.
const HeadSize = 512

var (
	ErrUnknownType  = errors.New("unsupported image type")
	ErrTypeMismatch = errors.New("declared content type does not match file contents")
)

type Result struct {
	Type ImageType
	MIME string
}

// Extension is the file extension used for stored objects.
func (r Result) Extension() string {
	if r.Type == TypeJPEG {
		return "jpg"
	}
	return string(r.Type)
}

// Detect reads up to HeadSize bytes from r and identifies the image format.
// The consumed head is returned so callers can stitch the stream back
// together.
func Detect(r io.Reader) (Result, []byte, error) {
	head := make([]byte, HeadSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Result{}, nil, err
	}
	head = head[:n]

	result, err := DetectHead(head)
	return result, head, err
}

func DetectHead(head []byte) (Result, error) {
	switch {
	case isJPEG(head):
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case isPNG(head):
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	case isGIF(head):
		return Result{Type: TypeGIF, MIME: "image/gif"}, nil
	case isWEBP(head):
		return Result{Type: TypeWEBP, MIME: "image/webp"}, nil
	}
	return Result{}, ErrUnknownType
}

// CheckDeclared compares a client-declared Content-Type against the
// detected one. An empty or generic declaration is accepted.
func CheckDeclared(declared string, detected Result) error {
	mediaType := declared
	if parsed, _, err := mime.ParseMediaType(declared); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch mediaType {
	case "", "application/octet-stream":
		return nil
	case detected.MIME:
		return nil
	case "image/jpg", "image/pjpeg":
		if detected.Type == TypeJPEG {
			return nil
		}
	}
	return ErrTypeMismatch
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
