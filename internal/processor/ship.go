package processor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/chtzvt/dropslurp/internal/compression"
	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/failure"
	"github.com/chtzvt/dropslurp/internal/sink"
	"github.com/chtzvt/dropslurp/internal/transformer"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Ship uploads an entry to a sink: a file as one object, a directory as one
// object per regular file beneath it. An optional manifest describing the
// uploaded objects is written as a last object.
//
// Failures reading the entry are terminal. Sink failures are recoverable.
type Ship struct {
	sink        sink.Sink
	compression string
	prefix      string
	manifest    transformer.Transformer
	now         func() time.Time
	logger      zerolog.Logger
}

func NewShip(opts map[string]interface{}, deps Deps) (engine.Processor, error) {
	sinkName := optString(opts, "sink")
	if sinkName == "" {
		return nil, fmt.Errorf("ship requires 'sink' option")
	}
	s, err := sink.New(sinkName, optMap(opts, "sink_options"), deps.Secrets)
	if err != nil {
		return nil, err
	}
	comp := optString(opts, "compression")
	if _, err := compression.NewWriter(io.Discard, comp); err != nil {
		return nil, err
	}

	var manifest transformer.Transformer
	if name := optString(opts, "manifest"); name != "" {
		manifest, err = transformer.New(name, optMap(opts, "manifest_options"))
		if err != nil {
			return nil, err
		}
	}
	return &Ship{
		sink:        s,
		compression: comp,
		prefix:      optString(opts, "prefix"),
		manifest:    manifest,
		now:         time.Now,
		logger:      deps.Logger,
	}, nil
}

func (s *Ship) HandlesDirectories() bool { return true }

type shipped struct {
	source string
	object string
	size   int64
	digest string
	mtime  time.Time
}

func (s *Ship) Process(ctx context.Context, entry string) error {
	info, err := os.Stat(entry)
	if err != nil {
		return failure.New(err)
	}

	var results []shipped
	if info.IsDir() {
		results, err = s.shipTree(ctx, entry)
	} else {
		var r shipped
		r, err = s.shipFile(ctx, entry, info, filepath.Base(entry))
		results = append(results, r)
	}
	if err != nil {
		return err
	}

	if s.manifest != nil {
		if err := s.writeManifest(ctx, filepath.Base(entry), results); err != nil {
			return err
		}
	}
	return nil
}

func (s *Ship) shipTree(ctx context.Context, root string) ([]shipped, error) {
	var results []shipped
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return failure.New(err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return failure.New(err)
		}
		rel, err := filepath.Rel(filepath.Dir(root), p)
		if err != nil {
			return failure.New(err)
		}
		r, err := s.shipFile(ctx, p, info, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		results = append(results, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, failure.Errorf("%s: directory holds no regular files", filepath.Base(root))
	}
	return results, nil
}

func (s *Ship) shipFile(ctx context.Context, p string, info os.FileInfo, rel string) (shipped, error) {
	f, err := os.Open(p)
	if err != nil {
		return shipped{}, failure.New(err)
	}
	defer f.Close()

	object := path.Join(s.prefix, rel) + compression.Ext(s.compression)
	w, err := s.open(ctx, object)
	if err != nil {
		return shipped{}, err
	}

	h := sha256.New()
	src := &readTracker{r: io.TeeReader(f, h)}
	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		if src.err != nil {
			return shipped{}, failure.New(fmt.Errorf("read %s: %w", p, src.err))
		}
		return shipped{}, failure.Recoverable(fmt.Errorf("upload %s: %w", object, err))
	}
	if err := w.Close(); err != nil {
		return shipped{}, failure.Recoverable(fmt.Errorf("upload %s: %w", object, err))
	}

	s.logger.Info().Str("object", object).Str("size", humanize.Bytes(uint64(n))).Msg("shipped")
	return shipped{
		source: rel,
		object: object,
		size:   n,
		digest: hex.EncodeToString(h.Sum(nil)),
		mtime:  info.ModTime(),
	}, nil
}

func (s *Ship) open(ctx context.Context, object string) (io.WriteCloser, error) {
	w, err := s.sink.Open(ctx, object)
	if err != nil {
		return nil, failure.Recoverable(fmt.Errorf("open %s: %w", object, err))
	}
	cw, err := compression.WrapWriteCloser(w, s.compression)
	if err != nil {
		w.Close()
		return nil, failure.New(err)
	}
	return cw, nil
}

func (s *Ship) writeManifest(ctx context.Context, entryName string, results []shipped) error {
	shippedAt := s.now().UTC()
	records := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		records = append(records, map[string]interface{}{
			"entry":      entryName,
			"source":     r.source,
			"object":     r.object,
			"size":       r.size,
			"sha256":     r.digest,
			"modified":   r.mtime.UTC(),
			"shipped_at": shippedAt,
		})
	}

	var buf bytes.Buffer
	if err := transformer.Encode(&buf, s.manifest, records); err != nil {
		return failure.New(fmt.Errorf("encode manifest: %w", err))
	}

	object := path.Join(s.prefix, entryName+".manifest"+s.manifest.Ext())
	w, err := s.sink.Open(ctx, object)
	if err != nil {
		return failure.Recoverable(fmt.Errorf("open %s: %w", object, err))
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return failure.Recoverable(fmt.Errorf("upload %s: %w", object, err))
	}
	if err := w.Close(); err != nil {
		return failure.Recoverable(fmt.Errorf("upload %s: %w", object, err))
	}
	return nil
}

// readTracker remembers the last read error so a failed copy can be blamed
// on the source or on the sink.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func init() {
	Register("ship", NewShip)
}
