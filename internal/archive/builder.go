package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/goerz/zip-files/internal/exclude"
)

const (
	dotfilePrefix = "."

	errorStatFormat     = "stat failed for %s: %w"
	errorListDirFormat  = "listing directory %s: %w"
	errorReadFileFormat = "reading %s: %w"
	errorRelativeFormat = "computing archive name for %s: %w"
	errorHeaderFormat   = "building archive header for %s: %w"
	errorWriteFormat    = "writing archive entry %s: %w"
	errorFinalizeFormat = "finalizing archive: %w"
)

// BuildOptions configures one archive build.
type BuildOptions struct {
	// RootFolder is an optional prefix prepended to every in-archive path.
	RootFolder string
	// Method selects the compression applied to every entry.
	Method Method
	// Patterns is the effective exclusion list, evaluated per file in order.
	Patterns []exclude.Pattern
	// ExcludeDotfiles skips files whose base name starts with a dot.
	ExcludeDotfiles bool
}

// Builder streams filtered file trees into a zip container. The traversal is
// single-threaded and depth-first; the pattern list is read-only throughout.
type Builder struct {
	logger  *zap.Logger
	options BuildOptions
}

// NewBuilder constructs a Builder. A nil logger disables logging.
func NewBuilder(logger *zap.Logger, options BuildOptions) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger, options: options}
}

// Build walks the input paths in the given order and writes every file that
// survives filtering into the output. The zip central directory is finalized
// on every exit path, so an archive that received entries is always closed
// out even when a later entry fails.
func (builder *Builder) Build(output io.Writer, inputPaths []string) (buildError error) {
	zipWriter := zip.NewWriter(output)
	registerCompressors(zipWriter)
	defer func() {
		if closeError := zipWriter.Close(); closeError != nil && buildError == nil {
			buildError = fmt.Errorf(errorFinalizeFormat, closeError)
		}
	}()

	for _, inputPath := range inputPaths {
		if addError := builder.addPath(zipWriter, inputPath, filepath.Dir(inputPath)); addError != nil {
			return addError
		}
	}
	return nil
}

// addPath adds a single file, or recurses depth-first into a directory.
// relativeTo stays fixed at the original top-level input's parent so nested
// files receive their full nested in-archive path. Directories themselves
// never produce archive entries.
func (builder *Builder) addPath(zipWriter *zip.Writer, currentPath string, relativeTo string) error {
	pathInfo, statError := os.Stat(currentPath)
	if statError != nil {
		return fmt.Errorf(errorStatFormat, currentPath, statError)
	}

	if pathInfo.IsDir() {
		directoryEntries, listError := os.ReadDir(currentPath)
		if listError != nil {
			return fmt.Errorf(errorListDirFormat, currentPath, listError)
		}
		for _, directoryEntry := range directoryEntries {
			entryPath := filepath.Join(currentPath, directoryEntry.Name())
			if addError := builder.addPath(zipWriter, entryPath, relativeTo); addError != nil {
				return addError
			}
		}
		return nil
	}

	return builder.addFile(zipWriter, currentPath, relativeTo, pathInfo)
}

// addFile filters one regular file and, when it survives, writes its content
// as an archive entry carrying the source permission bits and modification
// time.
func (builder *Builder) addFile(zipWriter *zip.Writer, filePath string, relativeTo string, fileInfo os.FileInfo) error {
	relativePath, relativeError := filepath.Rel(relativeTo, filePath)
	if relativeError != nil {
		return fmt.Errorf(errorRelativeFormat, filePath, relativeError)
	}
	archiveName := path.Join(filepath.ToSlash(builder.options.RootFolder), filepath.ToSlash(relativePath))

	if builder.options.ExcludeDotfiles && strings.HasPrefix(path.Base(archiveName), dotfilePrefix) {
		builder.logger.Debug("skipping dotfile", zap.String("name", archiveName))
		return nil
	}
	for _, exclusionPattern := range builder.options.Patterns {
		if exclusionPattern.Matches(archiveName) {
			builder.logger.Debug("skipping excluded entry",
				zap.String("name", archiveName),
				zap.String("pattern", exclusionPattern.Source()))
			return nil
		}
	}

	fileContent, readError := os.ReadFile(filePath)
	if readError != nil {
		return fmt.Errorf(errorReadFileFormat, filePath, readError)
	}

	entryHeader, headerError := zip.FileInfoHeader(fileInfo)
	if headerError != nil {
		return fmt.Errorf(errorHeaderFormat, filePath, headerError)
	}
	entryHeader.Name = archiveName
	entryHeader.Method = uint16(builder.options.Method)
	entryHeader.SetMode(fileInfo.Mode())

	entryWriter, createError := zipWriter.CreateHeader(entryHeader)
	if createError != nil {
		return fmt.Errorf(errorWriteFormat, archiveName, createError)
	}
	if _, writeError := entryWriter.Write(fileContent); writeError != nil {
		return fmt.Errorf(errorWriteFormat, archiveName, writeError)
	}

	builder.logger.Debug("added entry",
		zap.String("source", filePath),
		zap.String("name", archiveName))
	return nil
}
