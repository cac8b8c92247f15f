package simplemirror

import (
	"context"
	"fmt"
)

// Store uploads data directly under its own filename and returns the public
// URL. Unlike Mirror it makes a single attempt, skips verification and the
// cache, and reports failures as errors.
func (m *Mirrorer) Store(ctx context.Context, filename string, data []byte, stable bool) (string, error) {
	if len(data) == 0 {
		return "", ErrNoContent
	}
	if filename == "" {
		return "", ErrNoFilename
	}

	class := ClassifyForRequest(filename, stable, m.now())
	key := objectKeyUnder(m.rootFolder, class, filename)

	status, err := m.store.Put(ctx, key, data, class.ContentType)
	if err != nil {
		m.logger.Error("Failed to store file", "key", key, "err", err)
		return "", &StorageError{Key: key, Op: "put", Err: err}
	}
	if status != 200 {
		return "", &StorageError{Key: key, Op: "put", Err: fmt.Errorf("%w: status %d", ErrUploadFailed, status)}
	}

	return m.store.PublicURL(key), nil
}
