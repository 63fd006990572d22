package services

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"memoryland-backend/internal/imageproc"
	"memoryland-backend/internal/models"
	"memoryland-backend/internal/storage"
)

const (
	maxAlbumName   = 1024
	maxDisplayName = 50
	minPhotoName   = 3
	maxPhotoName   = 63

	albumReservedChars = "!*'();:@&=+$,/?#[]"
)

var photoNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

func validateAlbumName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("album name is required")
	}
	if utf8.RuneCountInString(name) > maxAlbumName {
		return invalid("album name can't be longer than %d characters", maxAlbumName)
	}
	if strings.ContainsAny(name, albumReservedChars) {
		return invalid("album name contains invalid characters")
	}
	return nil
}

func validateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		return invalid("display name can't be longer than %d characters", maxDisplayName)
	}
	return nil
}

// validatePhotoName applies the DNS-label rule: lowercase alphanumerics and
// hyphens, no leading, trailing or doubled hyphen.
func validatePhotoName(name string) error {
	if len(name) < minPhotoName || len(name) > maxPhotoName {
		return invalid("photo name must be between %d and %d characters", minPhotoName, maxPhotoName)
	}
	if !photoNamePattern.MatchString(name) || strings.Contains(name, "--") {
		return invalid("photo name contains invalid characters")
	}
	return nil
}

// splitFileName splits "<name>.<ext>" and maps ext onto a content type
func splitFileName(fileName string) (name, contentType string, err error) {
	ext := path.Ext(fileName)
	if ext == "" {
		return "", "", invalid("file name needs a .jpg, .jpeg or .png extension")
	}
	contentType = imageproc.ContentTypeForExtension(ext)
	if contentType == "" {
		return "", "", invalid("unsupported file type %q", ext)
	}
	name = strings.TrimSuffix(fileName, ext)
	if err := validatePhotoName(name); err != nil {
		return "", "", err
	}
	return name, contentType, nil
}

// photoKey is the immutable storage key of a photo inside its owner's
// container
func photoKey(photo *models.Photo) string {
	return storage.PadID(photo.ID) + imageproc.Extension(photo.ContentType)
}
