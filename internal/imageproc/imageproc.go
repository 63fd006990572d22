// Package imageproc normalizes uploaded photos before they are stored.
package imageproc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
)

const jpegQuality = 90

// ErrUndecodable is returned for bytes declared as JPEG that do not decode
var ErrUndecodable = errors.New("image could not be decoded")

// Content types accepted for photos
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)

// IsJPEG reports whether contentType names a JPEG-family image
func IsJPEG(contentType string) bool {
	switch strings.ToLower(contentType) {
	case ContentTypeJPEG, "image/jpg", "image/pjpeg":
		return true
	}
	return false
}

// ContentTypeForExtension maps a file extension to a content type.
// Unknown extensions return "".
func ContentTypeForExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return ContentTypeJPEG
	case "png":
		return ContentTypePNG
	}
	return ""
}

// Extension returns the storage key suffix for a content type
func Extension(contentType string) string {
	if IsJPEG(contentType) {
		return ".jpg"
	}
	return ".png"
}

// Orientation returns the EXIF orientation of a JPEG, or 1 when it has none
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Normalize bakes the EXIF orientation of a JPEG into its pixels and resets
// the orientation tag to 1. When maxDimension is non-zero the long edge is
// also capped at it. Non-JPEG bytes are returned unchanged.
func Normalize(data []byte, contentType string, maxDimension uint) ([]byte, error) {
	if !IsJPEG(contentType) {
		return data, nil
	}

	orientation := Orientation(data)
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	oversized := maxDimension > 0 && longEdge(img) > int(maxDimension)
	if orientation == 1 && !oversized {
		return data, nil
	}

	img = applyOrientation(img, orientation)
	if oversized {
		img = resize.Thumbnail(maxDimension, maxDimension, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return SetOrientation(buf.Bytes(), 1)
}

func longEdge(img image.Image) int {
	size := img.Bounds().Size()
	if size.X > size.Y {
		return size.X
	}
	return size.Y
}

// applyOrientation maps EXIF orientations onto pixel transforms. imaging
// rotates counter-clockwise.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// SetOrientation inserts a minimal EXIF segment carrying only the given
// orientation right after the SOI marker of an encoded JPEG that has no
// EXIF segment of its own.
func SetOrientation(jpegData []byte, orientation uint16) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return nil, fmt.Errorf("not a jpeg stream")
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(42))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	// IFD0 with a single SHORT entry
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, orientation)
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	out := make([]byte, 0, len(jpegData)+len(payload)+4)
	out = append(out, 0xFF, 0xD8, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	out = append(out, jpegData[2:]...)
	return out, nil
}
