package exclude

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/shinji-kodama/release-packager/internal/logging"
)

// ParseRules reads ignore file content and compiles its rules.
func ParseRules(r io.Reader) ([]Rule, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore rules: %w", err)
	}
	return CompileLines(lines), nil
}

// LoadFile reads and compiles an ignore file.
//
// A missing file is not an error: it returns no rules and found=false.
// Any other read failure is returned.
func LoadFile(path string) (rules []Rule, found bool, err error) {
	logger := logging.GetLogger("exclude")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", path).Msg("No ignore file, using built-in rules only")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rules, err = ParseRules(f)
	if err != nil {
		return nil, true, err
	}

	logger.Debug().Str("path", path).Int("rules", len(rules)).Msg("Loaded ignore file")
	return rules, true, nil
}

// Build loads the ignore file at ignorePath and returns a Matcher holding
// the built-in rules followed by the ignore file rules.
func Build(outputDir string, toolScripts []string, ignorePath string) (*Matcher, bool, error) {
	user, found, err := LoadFile(ignorePath)
	if err != nil {
		return nil, found, err
	}
	return NewMatcher(BuiltinRules(outputDir, toolScripts), user), found, nil
}
