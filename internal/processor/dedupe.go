package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/failure"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

// Dedupe refuses files whose content was already processed successfully. It
// remembers the SHA-256 digests of the last size successes. Directories pass
// through unchecked.
type Dedupe struct {
	next   engine.Processor
	seen   *lru.Cache
	logger zerolog.Logger
}

func NewDedupe(next engine.Processor, size int, logger zerolog.Logger) (*Dedupe, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Dedupe{next: next, seen: cache, logger: logger}, nil
}

func (d *Dedupe) HandlesDirectories() bool { return HandlesDirectories(d.next) }

func (d *Dedupe) Process(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return failure.New(err)
	}
	if info.IsDir() {
		return d.next.Process(ctx, path)
	}

	digest, err := fileDigest(path)
	if err != nil {
		return failure.New(err)
	}
	if prev, ok := d.seen.Get(digest); ok {
		return failure.Duplicate(fmt.Errorf("%s: same content as %s (sha256 %s)", filepath.Base(path), prev, digest))
	}

	if err := d.next.Process(ctx, path); err != nil {
		return err
	}
	d.seen.Add(digest, filepath.Base(path))
	d.logger.Debug().Str("path", path).Str("sha256", digest).Msg("digest remembered")
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
