package exclude

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
)

// Rule is one compiled exclusion rule.
type Rule struct {
	// Raw is the text the rule was created from: the ignore file line for
	// user rules, the regular expression itself for built-in rules.
	Raw string

	// Expr is the compiled regular expression, searched unanchored.
	Expr *regexp.Regexp

	// Origin tells built-in rules apart from ignore file rules.
	Origin model.RuleOrigin

	// Line is the 1-based ignore file line number. Zero for built-in rules.
	Line int
}

// Matches reports whether the rule matches anywhere in the normalized path.
func (r Rule) Matches(path string) bool {
	return r.Expr.MatchString(path)
}

// String renders the rule for listings, e.g. `builtin ^\.git`.
func (r Rule) String() string {
	return fmt.Sprintf("%s %s", r.Origin, r.Expr.String())
}

// BuiltinRules returns the rules that are always applied, in order:
// version control, the output directory, then each tool script.
//
// These expressions are used verbatim, without the glob conversion applied
// to user lines. All of them are anchored at the start of the path.
func BuiltinRules(outputDir string, toolScripts []string) []Rule {
	exprs := []string{
		`^\.git`,
		"^" + regexp.QuoteMeta(model.CleanPath(outputDir)),
	}
	for _, script := range toolScripts {
		exprs = append(exprs, "^"+regexp.QuoteMeta(model.CleanPath(script)))
	}

	rules := make([]Rule, 0, len(exprs))
	for _, e := range exprs {
		rules = append(rules, Rule{
			Raw:    e,
			Expr:   regexp.MustCompile(e),
			Origin: model.OriginBuiltin,
		})
	}
	return rules
}

// GlobToPattern converts one ignore file line into regular expression text.
//
// The steps run in a fixed order: escape dots, expand stars, then append
// ".*" when the line names a directory (ends with "/"). The input is
// expected to be trimmed.
func GlobToPattern(line string) string {
	pattern := strings.ReplaceAll(line, ".", `\.`)
	pattern = strings.ReplaceAll(pattern, "*", ".*")
	if strings.HasSuffix(line, "/") {
		pattern += ".*"
	}
	return pattern
}

// IsNegation reports whether a trimmed line is a re-inclusion line.
// Such lines are recognized only so they can be dropped.
func IsNegation(line string) bool {
	return strings.HasPrefix(line, "!")
}

// IsComment reports whether a trimmed line is a comment.
func IsComment(line string) bool {
	return strings.HasPrefix(line, "#")
}

// CompileLine turns one ignore file line into a user rule.
//
// It returns false for lines that produce no rule: blank lines, comments
// and negation lines. It never fails. When the converted pattern is not a
// valid RE2 expression (for example an unbalanced parenthesis) the line is
// matched literally instead, keeping only its star and trailing-slash
// meaning.
func CompileLine(line string, lineNo int) (Rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || IsComment(line) || IsNegation(line) {
		return Rule{}, false
	}

	pattern := GlobToPattern(line)
	expr, err := regexp.Compile(pattern)
	if err != nil {
		logger := logging.GetLogger("exclude")
		logger.Debug().
			Str("line", line).
			Int("lineNo", lineNo).
			Err(err).
			Msg("Pattern is not a valid expression, matching it literally")
		expr = regexp.MustCompile(literalPattern(line))
	}

	return Rule{
		Raw:    line,
		Expr:   expr,
		Origin: model.OriginUser,
		Line:   lineNo,
	}, true
}

// literalPattern is the fallback for lines that do not compile. Every
// character of the line is quoted except "*", which still matches any
// sequence, and a trailing "/" still covers everything below it.
func literalPattern(line string) string {
	parts := strings.Split(line, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	pattern := strings.Join(parts, ".*")
	if strings.HasSuffix(line, "/") {
		pattern += ".*"
	}
	return pattern
}

// CompileLines compiles every line in order, skipping lines that produce
// no rule.
func CompileLines(lines []string) []Rule {
	var rules []Rule
	for i, line := range lines {
		if rule, ok := CompileLine(line, i+1); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}
