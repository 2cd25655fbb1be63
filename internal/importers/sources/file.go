package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers"
)

// MetadataAdditionalFiles lists secondary upload paths on the primary content.
const MetadataAdditionalFiles = "additional_files"

// FileSource reads one local file.
type FileSource struct {
	path     string
	maxBytes int64
}

var _ importers.Source = (*FileSource)(nil)

// NewFileSource creates a source for path. A maxBytes <= 0 uses DefaultMaxBytes.
func NewFileSource(path string, maxBytes int64) *FileSource {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &FileSource{path: path, maxBytes: maxBytes}
}

func (s *FileSource) CanFetch() bool {
	return s.path != ""
}

func (s *FileSource) Fetch(context.Context) (importers.RawContent, error) {
	content, err := readFile(s.path, s.maxBytes)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("file", s.path, err)
	}
	return content, nil
}

// MultiFileSource treats the first path as the primary document and
// records the rest in metadata.
type MultiFileSource struct {
	paths    []string
	maxBytes int64
	logger   *zap.Logger
}

var _ importers.Source = (*MultiFileSource)(nil)

// NewMultiFileSource creates a source over paths. A nil logger discards output.
func NewMultiFileSource(paths []string, maxBytes int64, logger *zap.Logger) *MultiFileSource {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiFileSource{paths: append([]string(nil), paths...), maxBytes: maxBytes, logger: logger}
}

func (s *MultiFileSource) CanFetch() bool {
	return len(s.paths) > 0 && s.paths[0] != ""
}

// Fetch reads the primary file. Secondary files are listed, not read.
func (s *MultiFileSource) Fetch(context.Context) (importers.RawContent, error) {
	if !s.CanFetch() {
		return importers.RawContent{}, importers.NewSourceError("files", "", fmt.Errorf("no files"))
	}
	content, err := readFile(s.paths[0], s.maxBytes)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("files", s.paths[0], err)
	}
	if len(s.paths) > 1 {
		content.Metadata[MetadataAdditionalFiles] = append([]string(nil), s.paths[1:]...)
	}
	return content, nil
}

// FetchAll reads every file, skipping the ones that cannot be read.
func (s *MultiFileSource) FetchAll(ctx context.Context) []importers.RawContent {
	var out []importers.RawContent
	for _, p := range s.paths {
		if ctx.Err() != nil {
			break
		}
		content, err := readFile(p, s.maxBytes)
		if err != nil {
			s.logger.Warn("skipping unreadable file", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, content)
	}
	return out
}

func readFile(path string, maxBytes int64) (importers.RawContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return importers.RawContent{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return importers.RawContent{}, err
	}
	if info.IsDir() {
		return importers.RawContent{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxBytes {
		return importers.RawContent{}, ErrTooLarge
	}

	data, err := readLimited(f, maxBytes)
	if err != nil {
		return importers.RawContent{}, err
	}
	return bytesContent(data, filepath.Base(path), path), nil
}

// bytesContent classifies data by file name and decodes text types.
func bytesContent(data []byte, name, path string) importers.RawContent {
	ct := importers.ContentTypeFromExtension(name)
	content := importers.RawContent{
		Type:       ct,
		SourcePath: path,
		Metadata:   map[string]any{"filename": name, "size": len(data)},
	}
	if isTextual(ct) {
		if text, err := decodeText(data, ""); err == nil {
			content.Text = text
			return content
		}
	}
	content.Data = data
	return content
}

// BytesSource wraps an in-memory upload.
type BytesSource struct {
	name string
	data []byte
}

var _ importers.Source = (*BytesSource)(nil)

// NewBytesSource creates a source for an upload named name.
func NewBytesSource(name string, data []byte) *BytesSource {
	return &BytesSource{name: name, data: data}
}

func (s *BytesSource) CanFetch() bool { return len(s.data) > 0 }

func (s *BytesSource) Fetch(context.Context) (importers.RawContent, error) {
	if len(s.data) == 0 {
		return importers.RawContent{}, importers.NewSourceError("upload", s.name, fmt.Errorf("empty upload"))
	}
	return bytesContent(s.data, s.name, ""), nil
}
