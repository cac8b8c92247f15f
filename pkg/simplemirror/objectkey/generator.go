package objectkey

import (
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for storage backends
	GenerateKey(metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Root      string // first path segment, e.g. "new"
	Folder    string // top-level MIME category or "any"
	SubFolder string // "stable" or a YYYYMMDD date bucket
	FileName  string
}

// Prefix returns {root}/{folder}/{subFolder}, skipping empty segments.
func (m *KeyMetadata) Prefix() string {
	if m == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Root, m.Folder, m.SubFolder} {
		if p != "" {
			parts = append(parts, sanitizePathComponent(p))
		}
	}
	return strings.Join(parts, "/")
}

// RandomGenerator names every object with a fresh random token, ignoring the
// source filename. Mirrored images always get the same extension regardless
// of their real encoding.
// Structure: {root}/{folder}/{subFolder}/{token}{ext}
type RandomGenerator struct {
	Extension string
	NewToken  func() string
}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{
		Extension: ".jpg",
		NewToken:  func() string { return uuid.NewString() },
	}
}

func (g *RandomGenerator) GenerateKey(metadata *KeyMetadata) string {
	token := g.NewToken
	if token == nil {
		token = uuid.NewString
	}
	return join(metadata.Prefix(), token()+g.Extension)
}

// FileNameGenerator keeps the caller supplied filename.
// Structure: {root}/{folder}/{subFolder}/{filename}
type FileNameGenerator struct{}

func NewFileNameGenerator() *FileNameGenerator {
	return &FileNameGenerator{}
}

func (g *FileNameGenerator) GenerateKey(metadata *KeyMetadata) string {
	name := ""
	if metadata != nil {
		name = sanitizeFilename(metadata.FileName)
	}
	if name == "" {
		name = uuid.NewString()
	}
	return join(metadata.Prefix(), name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(metadata *KeyMetadata) string {
	return g.GenerateFunc(metadata)
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Filenames keep their case and spaces; only path separators are replaced so
// a name can never escape its prefix.
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
