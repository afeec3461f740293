package exclude

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const errorInvalidGlobFormat = "invalid glob pattern %q"

// Pattern is one exclusion rule. A pattern is immutable once constructed and
// is evaluated independently against each candidate in-archive path.
type Pattern interface {
	// Matches reports whether the slash-separated in-archive path is excluded.
	Matches(archivePath string) bool
	// Source returns the pattern text the rule was built from, for diagnostics.
	Source() string
}

// GlobPattern matches shell-glob syntax against the trailing components of an
// in-archive path, the way explicit exclude options and exclude-list lines are
// interpreted.
type GlobPattern struct {
	patternValue string
}

// NewGlobPattern validates the glob syntax eagerly so that a malformed pattern
// surfaces as a configuration error before any traversal begins.
func NewGlobPattern(patternValue string) (GlobPattern, error) {
	if !doublestar.ValidatePattern(patternValue) {
		return GlobPattern{}, fmt.Errorf(errorInvalidGlobFormat, patternValue)
	}
	return GlobPattern{patternValue: patternValue}, nil
}

// Matches evaluates the glob against the full path and against every
// component-aligned suffix of it, so "b/*.txt" excludes "a/b/file.txt" while
// "*.txt" excludes any .txt file at any depth.
func (pattern GlobPattern) Matches(archivePath string) bool {
	candidatePath := strings.TrimSuffix(filepath.ToSlash(archivePath), "/")
	suffixStart := 0
	for {
		matched, matchError := doublestar.Match(pattern.patternValue, candidatePath[suffixStart:])
		if matchError == nil && matched {
			return true
		}
		separatorIndex := strings.Index(candidatePath[suffixStart:], "/")
		if separatorIndex < 0 {
			return false
		}
		suffixStart += separatorIndex + 1
	}
}

// Source returns the raw glob text.
func (pattern GlobPattern) Source() string {
	return pattern.patternValue
}

// RegexPattern matches a fully anchored regular expression, produced by
// Translate, against the entire in-archive path.
type RegexPattern struct {
	sourceText string
	expression *regexp.Regexp
}

// NewRegexPattern compiles the translated expression. The sourceText is the
// original .gitignore line, kept for diagnostics.
func NewRegexPattern(sourceText string, expressionText string) (RegexPattern, error) {
	compiledExpression, compileError := regexp.Compile(expressionText)
	if compileError != nil {
		return RegexPattern{}, fmt.Errorf(errorInvalidExpressionFormat, sourceText, compileError)
	}
	return RegexPattern{sourceText: sourceText, expression: compiledExpression}, nil
}

// Matches reports whether the expression matches the whole path.
func (pattern RegexPattern) Matches(archivePath string) bool {
	return pattern.expression.MatchString(filepath.ToSlash(archivePath))
}

// Source returns the .gitignore line the expression was translated from.
func (pattern RegexPattern) Source() string {
	return pattern.sourceText
}
