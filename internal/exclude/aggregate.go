package exclude

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	gitIgnoreFileName = ".gitignore"
	commentLinePrefix = "#"
	negationPrefix    = "!"

	errorListFileFormat      = "reading exclude-list file %s: %w"
	errorGitignoreFormat     = "reading %s: %w"
	errorGitignoreWalkFormat = "discovering .gitignore files under %s: %w"
	warningNegatedLine       = "ignoring negated .gitignore line"
)

// Options configures one BuildExcludes invocation.
type Options struct {
	// ExplicitPatterns are glob patterns given directly by the caller.
	ExplicitPatterns []string
	// ListFiles name plain-text files holding one glob pattern per line.
	ListFiles []string
	// IncludeVCS appends the built-in VCS metadata pattern set.
	IncludeVCS bool
	// IncludeGitignores discovers and translates .gitignore files beneath the
	// candidate roots.
	IncludeGitignores bool
	// CandidateRoots are the archive input paths searched for .gitignore files.
	CandidateRoots []string
	// RootFolder is the in-archive prefix the translated patterns anchor to.
	RootFolder string
	// Logger receives warnings about dropped negated lines. May be nil.
	Logger *zap.Logger
}

// BuildExcludes assembles the effective pattern list for one archive build.
// Order is explicit patterns, then list-file patterns in file order, then the
// VCS set, then translated .gitignore patterns. Matching any single pattern
// excludes a path, so no deduplication is performed.
func BuildExcludes(options Options) ([]Pattern, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var patternList []Pattern

	for _, explicitPattern := range options.ExplicitPatterns {
		globPattern, patternError := NewGlobPattern(explicitPattern)
		if patternError != nil {
			return nil, patternError
		}
		patternList = append(patternList, globPattern)
	}

	for _, listFilePath := range options.ListFiles {
		listPatterns, listError := loadExcludeListFile(listFilePath)
		if listError != nil {
			return nil, listError
		}
		patternList = append(patternList, listPatterns...)
	}

	if options.IncludeVCS {
		for _, vcsGlob := range vcsExcludeGlobs {
			vcsPattern, patternError := NewGlobPattern(vcsGlob)
			if patternError != nil {
				return nil, patternError
			}
			patternList = append(patternList, vcsPattern)
		}
	}

	if options.IncludeGitignores {
		for _, candidateRoot := range options.CandidateRoots {
			gitignorePatterns, gitignoreError := collectGitignorePatterns(candidateRoot, options.RootFolder, logger)
			if gitignoreError != nil {
				return nil, gitignoreError
			}
			patternList = append(patternList, gitignorePatterns...)
		}
	}

	return patternList, nil
}

// loadExcludeListFile reads one glob pattern per line. Blank lines are
// skipped; there is no comment syntax.
func loadExcludeListFile(listFilePath string) ([]Pattern, error) {
	fileHandle, openError := os.Open(listFilePath)
	if openError != nil {
		return nil, fmt.Errorf(errorListFileFormat, listFilePath, openError)
	}
	defer fileHandle.Close()

	var listPatterns []Pattern
	lineScanner := bufio.NewScanner(fileHandle)
	for lineScanner.Scan() {
		trimmedLine := strings.TrimSpace(lineScanner.Text())
		if trimmedLine == "" {
			continue
		}
		globPattern, patternError := NewGlobPattern(trimmedLine)
		if patternError != nil {
			return nil, patternError
		}
		listPatterns = append(listPatterns, globPattern)
	}
	if scanError := lineScanner.Err(); scanError != nil {
		return nil, fmt.Errorf(errorListFileFormat, listFilePath, scanError)
	}
	return listPatterns, nil
}

// collectGitignorePatterns translates every .gitignore file reachable from
// candidateRoot. A candidate that is itself named .gitignore is processed
// directly; a candidate directory is searched recursively; any other plain
// file contributes nothing.
func collectGitignorePatterns(candidateRoot string, rootFolder string, logger *zap.Logger) ([]Pattern, error) {
	candidateInfo, statError := os.Stat(candidateRoot)
	if statError != nil {
		return nil, fmt.Errorf(errorGitignoreFormat, candidateRoot, statError)
	}

	if !candidateInfo.IsDir() {
		if filepath.Base(candidateRoot) != gitIgnoreFileName {
			return nil, nil
		}
		return translateGitignoreFile(candidateRoot, candidateRoot, rootFolder, logger)
	}

	var collectedPatterns []Pattern
	walkError := filepath.WalkDir(candidateRoot, func(currentPath string, directoryEntry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if directoryEntry.IsDir() || directoryEntry.Name() != gitIgnoreFileName {
			return nil
		}
		filePatterns, translateError := translateGitignoreFile(currentPath, candidateRoot, rootFolder, logger)
		if translateError != nil {
			return translateError
		}
		collectedPatterns = append(collectedPatterns, filePatterns...)
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(errorGitignoreWalkFormat, candidateRoot, walkError)
	}
	return collectedPatterns, nil
}

// translateGitignoreFile reads one .gitignore file and translates its lines
// into regex patterns anchored to the prefix under which the file applies:
// the root folder joined with the file's directory relative to the candidate
// root's own parent. Comments and blank lines are skipped; negated lines are
// dropped with a warning.
func translateGitignoreFile(gitignorePath string, candidateRoot string, rootFolder string, logger *zap.Logger) ([]Pattern, error) {
	prefixValue, prefixError := derivePrefix(gitignorePath, candidateRoot, rootFolder)
	if prefixError != nil {
		return nil, prefixError
	}

	fileHandle, openError := os.Open(gitignorePath)
	if openError != nil {
		return nil, fmt.Errorf(errorGitignoreFormat, gitignorePath, openError)
	}
	defer fileHandle.Close()

	var filePatterns []Pattern
	lineScanner := bufio.NewScanner(fileHandle)
	for lineScanner.Scan() {
		trimmedLine := strings.TrimSpace(lineScanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentLinePrefix) {
			continue
		}
		if strings.HasPrefix(trimmedLine, negationPrefix) {
			logger.Warn(warningNegatedLine,
				zap.String("file", gitignorePath),
				zap.String("line", trimmedLine))
			continue
		}
		expressionText, translateError := Translate(prefixValue, trimmedLine)
		if translateError != nil {
			return nil, fmt.Errorf(errorGitignoreFormat, gitignorePath, translateError)
		}
		regexPattern, patternError := NewRegexPattern(trimmedLine, expressionText)
		if patternError != nil {
			return nil, fmt.Errorf(errorGitignoreFormat, gitignorePath, patternError)
		}
		filePatterns = append(filePatterns, regexPattern)
	}
	if scanError := lineScanner.Err(); scanError != nil {
		return nil, fmt.Errorf(errorGitignoreFormat, gitignorePath, scanError)
	}
	return filePatterns, nil
}

// derivePrefix computes the in-archive prefix for a .gitignore file: the root
// folder joined with the file's directory relative to the candidate root's
// parent. This mirrors how the archive builder names entries beneath each
// top-level input.
func derivePrefix(gitignorePath string, candidateRoot string, rootFolder string) (string, error) {
	relativeDirectory, relativeError := filepath.Rel(filepath.Dir(candidateRoot), filepath.Dir(gitignorePath))
	if relativeError != nil {
		return "", fmt.Errorf(errorGitignoreFormat, gitignorePath, relativeError)
	}
	prefixValue := path.Join(filepath.ToSlash(rootFolder), filepath.ToSlash(relativeDirectory))
	if prefixValue == "." {
		prefixValue = ""
	}
	return prefixValue, nil
}
