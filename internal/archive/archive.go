// Package archive expands ZIP uploads into individual stored documents.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"medstudy-backend/internal/extract"
	"medstudy-backend/internal/shared/storage/object"
	"medstudy-backend/internal/shared/telemetry"
)

// ErrArchiveCorrupt is returned when the archive cannot be opened or read.
var ErrArchiveCorrupt = errors.New("archive corrupt")

// Entry is one supported file materialized from an archive.
type Entry struct {
	StorageKey   string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Kind         extract.Kind
}

// Expander reads archives from Store and writes their supported entries back
// to it under fresh keys.
type Expander struct {
	Store object.ObjectStore
	// MaxEntryBytes skips entries whose uncompressed size exceeds it. Zero disables the check.
	MaxEntryBytes int64
}

// Expand materializes every pdf/docx/csv entry of the archive at archiveKey in
// archive order. Directories, other extensions and entries over MaxEntryBytes
// are skipped. On success the archive itself is deleted. On failure nothing
// written by this call is left behind and the error wraps ErrArchiveCorrupt
// when the archive is unreadable.
func (e *Expander) Expand(ctx context.Context, ownerID, archiveKey string) ([]Entry, error) {
	rc, err := e.Store.Open(ctx, archiveKey)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		e.discard(ctx, archiveKey)
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}

	var entries []Entry
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			e.rollback(ctx, entries)
			return nil, err
		}
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}
		base := path.Base(name)
		kind, ok := extract.KindOf(path.Ext(base))
		if !ok {
			telemetry.Info("archive.entry_skipped", map[string]any{"entry": name, "reason": "unsupported_extension"})
			continue
		}
		if e.MaxEntryBytes > 0 && f.UncompressedSize64 > uint64(e.MaxEntryBytes) {
			telemetry.Warn("archive.entry_skipped", map[string]any{"entry": name, "reason": "too_large", "size_bytes": f.UncompressedSize64})
			continue
		}

		entry, err := e.materialize(ctx, ownerID, f, base, kind)
		if err != nil {
			e.rollback(ctx, entries)
			e.discard(ctx, archiveKey)
			return nil, fmt.Errorf("entry %s: %w", name, err)
		}
		entries = append(entries, entry)
	}

	e.discard(ctx, archiveKey)
	return entries, nil
}

// materialize copies one entry into the store. Errors reading the entry wrap
// ErrArchiveCorrupt; errors writing it are returned as the store reported them.
func (e *Expander) materialize(ctx context.Context, ownerID string, f *zip.File, base string, kind extract.Kind) (Entry, error) {
	rc, err := f.Open()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer rc.Close()

	body := &entryReader{r: rc}
	if e.MaxEntryBytes > 0 {
		body.r = io.LimitReader(rc, e.MaxEntryBytes)
	}
	key, size, _, err := e.Store.Save(ctx, ownerID, base, body)
	if body.err != nil {
		if err == nil {
			e.discard(ctx, key)
		}
		return Entry{}, fmt.Errorf("%w: %v", ErrArchiveCorrupt, body.err)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store entry: %w", err)
	}
	return Entry{
		StorageKey:   key,
		OriginalName: base,
		MimeType:     extract.MimeFor(kind),
		SizeBytes:    size,
		Kind:         kind,
	}, nil
}

// entryReader remembers the first read error so a damaged entry can be told
// apart from a failing store.
type entryReader struct {
	r   io.Reader
	err error
}

func (r *entryReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

func (e *Expander) rollback(ctx context.Context, entries []Entry) {
	for _, entry := range entries {
		e.discard(ctx, entry.StorageKey)
	}
}

func (e *Expander) discard(ctx context.Context, key string) {
	if err := e.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		telemetry.Warn("archive.delete_failed", map[string]any{"storage_key": key, "error": err.Error()})
	}
}
