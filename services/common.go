package services

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var allowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".heic", ".heif", ".webp"}

func GetEnv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

// ClothingObjectKey builds the storage key for an item photo. The client's
// file name only contributes its extension.
func ClothingObjectKey(userID uint, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(allowedImageExtensions, ext) {
		return "", fmt.Errorf("unsupported image extension %q", ext)
	}
	return fmt.Sprintf("clothes/%d/%s%s", userID, uuid.NewString(), ext), nil
}
