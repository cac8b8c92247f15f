package simplemirror

import (
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tendant/simple-mirror/pkg/simplemirror/objectkey"
)

const (
	// DefaultRootFolder is the first segment of every object key.
	DefaultRootFolder = "new"

	// StableSubFolder holds assets that are not time-bucketed.
	StableSubFolder = "stable"

	// AnyFolder is used when no MIME type can be guessed.
	AnyFolder = "any"

	// DefaultContentType is used when no MIME type can be guessed.
	DefaultContentType = "application/octet-stream"

	dateBucketLayout = "20060102"
)

// bucketZone is UTC+7, the zone date buckets are computed in.
var bucketZone = time.FixedZone("UTC+7", 7*60*60)

// Extensions missing from Go's builtin table that show up in mirrored URLs.
// System mime.types files may already know them; registering is idempotent.
var extraTypes = map[string]string{
	".bmp":  "image/bmp",
	".ico":  "image/vnd.microsoft.icon",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".jfif": "image/jpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/x-wav",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func init() {
	for ext, typ := range extraTypes {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}

// Classify derives the storage folder and content type from a filename.
// Only the extension is inspected. It never fails: unknown types fall back to
// the "any" folder with application/octet-stream.
func Classify(filename string) ClassifiedName {
	contentType := guessContentType(filename)
	if contentType == "" {
		return ClassifiedName{Folder: AnyFolder, ContentType: DefaultContentType}
	}
	folder, _, _ := strings.Cut(contentType, "/")
	return ClassifiedName{Folder: folder, ContentType: contentType}
}

func guessContentType(filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		return ""
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return ""
	}
	// Drop parameters such as "; charset=utf-8".
	if mediaType, _, err := mime.ParseMediaType(typ); err == nil {
		return mediaType
	}
	return typ
}

// SubFolder returns "stable" for stable assets, otherwise the YYYYMMDD date
// bucket of now in UTC+7.
func SubFolder(stable bool, now time.Time) string {
	if stable {
		return StableSubFolder
	}
	return now.In(bucketZone).Format(dateBucketLayout)
}

// ClassifyForRequest classifies filename and fills in the sub folder.
func ClassifyForRequest(filename string, stable bool, now time.Time) ClassifiedName {
	c := Classify(filename)
	c.SubFolder = SubFolder(stable, now)
	return c
}

// FilenameFromURL returns the last segment of the URL path, still escaped.
// It returns ErrNoFilename when the path is empty or ends in "/".
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrNoFilename
	}
	p := u.EscapedPath()
	idx := strings.LastIndex(p, "/")
	name := p[idx+1:]
	if name == "" {
		return "", ErrNoFilename
	}
	return name, nil
}

// ObjectKey returns new/{folder}/{subFolder}/{name}.
func ObjectKey(class ClassifiedName, name string) string {
	return objectKeyUnder(DefaultRootFolder, class, name)
}

func objectKeyUnder(root string, class ClassifiedName, name string) string {
	return objectkey.NewFileNameGenerator().GenerateKey(&objectkey.KeyMetadata{
		Root:      root,
		Folder:    class.Folder,
		SubFolder: class.SubFolder,
		FileName:  name,
	})
}
