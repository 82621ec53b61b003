package upload

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keySuffixLength = 8

// KeyGenerator produces unique storage keys.
type KeyGenerator struct {
	prefix string
	now    func() time.Time
	suffix func() string
}

// NewKeyGenerator creates a generator that places keys under prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// New returns a key shaped like videos/interview-<unixMillis>-<random>.<ext>.
func (g *KeyGenerator) New(contentType string) string {
	name := fmt.Sprintf("interview-%d-%s%s", g.now().UnixMilli(), g.suffix(), Extension(contentType))
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}

// Extension maps a recording media type to a file extension.
func Extension(contentType string) string {
	mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	switch strings.TrimSpace(mediaType) {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	default:
		return ".webm"
	}
}

// ValidKey reports whether key is a plausible object key under prefix.
func ValidKey(prefix, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return false
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(key, prefix+"/")
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:keySuffixLength]
}
