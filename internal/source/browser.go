// Package source lists a music library's audio files and extracts per-track
// metadata from header bytes. The Browser interface is the remote-lister
// collaborator boundary: the core only needs a stable id, a name and an
// optional size per file. The shipped implementation walks a local directory.
package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// HeaderBytes is enough of a file to carry its ID3 tags.
const HeaderBytes = 64 * 1024

// audioExtensions gates which files count as library tracks.
var audioExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".flac": {}, ".wav": {},
	".ogg": {}, ".opus": {}, ".aac": {}, ".wma": {},
}

// File describes one audio file found in the library.
type File struct {
	ID       string // stable identity; for DirBrowser the slash-separated relative path
	Name     string
	MIMEType string
	Size     int64 // 0 when unknown
	Path     string
}

// Browser lists audio files and serves header reads. Transport reliability,
// retries and timeouts are the implementation's concern, not the core's.
type Browser interface {
	ListAudioFiles(ctx context.Context) ([]File, error)
	ReadHeader(ctx context.Context, id string, n int64) ([]byte, error)
}

// DirBrowser walks a local directory tree.
type DirBrowser struct {
	root string
}

func NewDirBrowser(root string) *DirBrowser {
	return &DirBrowser{root: root}
}

// ListAudioFiles walks the tree and returns every audio file, skipping
// unreadable subtrees rather than failing the listing.
func (b *DirBrowser) ListAudioFiles(ctx context.Context) ([]File, error) {
	var files []File

	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := audioExtensions[ext]; !ok {
			return nil
		}

		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		files = append(files, File{
			ID:       rel,
			Name:     d.Name(),
			MIMEType: mime.TypeByExtension(ext),
			Size:     size,
			Path:     rel,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.root, err)
	}
	return files, nil
}

// ReadHeader returns the first n bytes of the identified file.
func (b *DirBrowser) ReadHeader(ctx context.Context, id string, n int64) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// The id is a relative path; keep it inside the root.
	clean := path.Clean(id)
	if strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("invalid file id %q", id)
	}

	f, err := os.Open(filepath.Join(b.root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read header %s: %w", id, err)
	}
	return buf[:read], nil
}
