package services

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/ornithemc/installer/util"
)

// ArtifactWriter is the sink every output mode writes through, whether
// the artifact ends up as loose files or a zip. Entry names use forward
// slashes. No collision checking is done: last write wins.
type ArtifactWriter interface {
	WriteFile(path string, data []byte) error
	CreateDir(path string) error
}

// DirWriter materializes entries as loose files under a root directory.
type DirWriter struct {
	Root string
}

func (w *DirWriter) WriteFile(path string, data []byte) error {
	file := filepath.Join(w.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to create %s", filepath.Dir(file))
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to write %s", file)
	}
	return nil
}

func (w *DirWriter) CreateDir(path string) error {
	dir := filepath.Join(w.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to create %s", dir)
	}
	return nil
}

// ZipWriter materializes entries into a zip container in call order.
// Directories become explicit zero-byte entries.
type ZipWriter struct {
	zw *zip.Writer
}

func NewZipWriter(w io.Writer) *ZipWriter {
	return &ZipWriter{zw: zip.NewWriter(w)}
}

func (w *ZipWriter) WriteFile(path string, data []byte) error {
	entry, err := w.zw.Create(path)
	if err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to create zip entry %s", path)
	}
	if _, err := entry.Write(data); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to write zip entry %s", path)
	}
	return nil
}

func (w *ZipWriter) CreateDir(path string) error {
	if _, err := w.zw.Create(path + "/"); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to create zip directory %s", path)
	}
	return nil
}

func (w *ZipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to finish zip")
	}
	return nil
}
