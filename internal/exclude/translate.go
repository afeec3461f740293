// Package exclude builds and evaluates the exclusion patterns that decide
// which files are omitted from an archive.
package exclude

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Placeholder tokens isolate glob constructs from literal text so that
// regexp.QuoteMeta cannot escape the regular expression fragments they
// expand to. The NUL framing keeps them from colliding with pattern text.
const (
	tokenLeadingGlobstar  = "\x00LEADING\x00"
	tokenTrailingGlobstar = "\x00TRAILING\x00"
	tokenInnerGlobstar    = "\x00INNER\x00"
	tokenSingleStar       = "\x00STAR\x00"
	tokenQuestionMark     = "\x00QUESTION\x00"
	tokenBracketFormat    = "\x00BRACKET%d\x00"
)

const (
	leadingGlobstarExpression  = "(.*/)?"
	trailingGlobstarExpression = "/.*"
	innerGlobstarExpression    = "/(.*/)?"
	singleStarExpression       = "[^/]+"
	questionMarkExpression     = "[^/]"
	trailingSubpathExpression  = "(/.*)?"
)

const (
	errorUnterminatedBracketFormat = "unterminated bracket expression in pattern %q"
	errorInvalidExpressionFormat   = "pattern %q does not translate to a valid expression: %w"
)

// Translate converts a single .gitignore line into an anchored regular
// expression over slash-separated in-archive paths. The expression matches
// exactly the paths the line would ignore beneath prefixValue. The caller is
// responsible for filtering out comments, blank lines, and negated lines.
func Translate(prefixValue string, patternValue string) (string, error) {
	normalizedPattern := patternValue
	if !strings.Contains(strings.TrimSuffix(normalizedPattern, "/"), "/") {
		normalizedPattern = "**/" + normalizedPattern
	}
	if strings.HasSuffix(normalizedPattern, "/") {
		normalizedPattern += "**"
	}
	// A leading slash anchors the pattern to the prefix directory itself.
	normalizedPattern = strings.TrimPrefix(normalizedPattern, "/")

	tokenizedPattern, bracketClasses, bracketError := isolateBracketExpressions(normalizedPattern)
	if bracketError != nil {
		return "", bracketError
	}

	if strings.HasPrefix(tokenizedPattern, "**/") {
		tokenizedPattern = tokenLeadingGlobstar + strings.TrimPrefix(tokenizedPattern, "**/")
	}
	if strings.HasSuffix(tokenizedPattern, "/**") {
		tokenizedPattern = strings.TrimSuffix(tokenizedPattern, "/**") + tokenTrailingGlobstar
	}
	tokenizedPattern = strings.ReplaceAll(tokenizedPattern, "/**/", tokenInnerGlobstar)
	tokenizedPattern = strings.ReplaceAll(tokenizedPattern, "*", tokenSingleStar)
	tokenizedPattern = strings.ReplaceAll(tokenizedPattern, "?", tokenQuestionMark)

	bodyExpression := regexp.QuoteMeta(tokenizedPattern)
	bodyExpression = strings.ReplaceAll(bodyExpression, tokenLeadingGlobstar, leadingGlobstarExpression)
	bodyExpression = strings.ReplaceAll(bodyExpression, tokenTrailingGlobstar, trailingGlobstarExpression)
	bodyExpression = strings.ReplaceAll(bodyExpression, tokenInnerGlobstar, innerGlobstarExpression)
	bodyExpression = strings.ReplaceAll(bodyExpression, tokenSingleStar, singleStarExpression)
	bodyExpression = strings.ReplaceAll(bodyExpression, tokenQuestionMark, questionMarkExpression)
	for bracketIndex, bracketClass := range bracketClasses {
		placeholder := fmt.Sprintf(tokenBracketFormat, bracketIndex)
		bodyExpression = strings.ReplaceAll(bodyExpression, placeholder, "["+bracketClass+"]")
	}

	prefixExpression := regexp.QuoteMeta(filepath.ToSlash(prefixValue))
	if prefixExpression != "" {
		prefixExpression += "/"
	}
	fullExpression := "^" + prefixExpression + bodyExpression + trailingSubpathExpression + "$"

	if _, compileError := regexp.Compile(fullExpression); compileError != nil {
		return "", fmt.Errorf(errorInvalidExpressionFormat, patternValue, compileError)
	}
	return fullExpression, nil
}

// isolateBracketExpressions replaces every bracket expression with an indexed
// placeholder and returns the collected character classes. A leading "!" in a
// class is converted to the "^" negation the regexp dialect expects.
func isolateBracketExpressions(patternValue string) (string, []string, error) {
	var resultBuilder strings.Builder
	var bracketClasses []string

	characterIndex := 0
	for characterIndex < len(patternValue) {
		currentCharacter := patternValue[characterIndex]
		if currentCharacter != '[' {
			resultBuilder.WriteByte(currentCharacter)
			characterIndex++
			continue
		}
		closingIndex := findClosingBracket(patternValue, characterIndex)
		if closingIndex < 0 {
			return "", nil, fmt.Errorf(errorUnterminatedBracketFormat, patternValue)
		}
		bracketClass := patternValue[characterIndex+1 : closingIndex]
		if strings.HasPrefix(bracketClass, "!") {
			bracketClass = "^" + strings.TrimPrefix(bracketClass, "!")
		}
		resultBuilder.WriteString(fmt.Sprintf(tokenBracketFormat, len(bracketClasses)))
		bracketClasses = append(bracketClasses, bracketClass)
		characterIndex = closingIndex + 1
	}
	return resultBuilder.String(), bracketClasses, nil
}

// findClosingBracket locates the "]" terminating the bracket expression that
// opens at openingIndex, honoring the rule that a "]" immediately after the
// opening bracket (or after a leading negation) is a literal member of the
// class. Returns -1 when the expression is unterminated.
func findClosingBracket(patternValue string, openingIndex int) int {
	searchIndex := openingIndex + 1
	if searchIndex < len(patternValue) && (patternValue[searchIndex] == '!' || patternValue[searchIndex] == '^') {
		searchIndex++
	}
	if searchIndex < len(patternValue) && patternValue[searchIndex] == ']' {
		searchIndex++
	}
	for searchIndex < len(patternValue) {
		if patternValue[searchIndex] == ']' {
			return searchIndex
		}
		searchIndex++
	}
	return -1
}
