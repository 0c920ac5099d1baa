// Package cli - exclusions.go implements the "release-packager exclusions" command.
//
// Without arguments the command lists the compiled exclusion rules, the
// built-in ones first, as a text table or JSON array. With path arguments
// it shows, for each path, whether it would be excluded and which rule
// matched first. This makes the substring semantics of ignore lines easy
// to check before packaging.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/release-packager/internal/exclude"
	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
)

// NewExclusionsCommand creates the "exclusions" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewExclusionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclusions [path...]",
		Short: "Show exclusion rules or test paths against them",
		Long: `Show the compiled exclusion rules, or test paths against them.

Paths are relative to the project root and may use either slash.

Examples:
  release-packager exclusions
  release-packager exclusions config/app.php node_modules/x/index.js
  release-packager exclusions --json`,

		Args: cobra.ArbitraryArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runExclusions(cmd, args)
		},
	}
	return cmd
}

// ruleJSON is the JSON output structure for one rule.
type ruleJSON struct {
	Origin  string `json:"origin"`
	Line    int    `json:"line,omitempty"`
	Raw     string `json:"raw"`
	Pattern string `json:"pattern"`
}

// decisionJSON is the JSON output structure for one tested path.
type decisionJSON struct {
	Path     string    `json:"path"`
	Excluded bool      `json:"excluded"`
	Rule     *ruleJSON `json:"rule,omitempty"`
}

// runExclusions is the main logic function for the exclusions command.
func runExclusions(cmd *cobra.Command, paths []string) error {
	// Step 1: Load the configuration for the output dir, scripts and
	// ignore file location.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 2: Compile the rules exactly as a packaging run would.
	matcher, found, err := exclude.Build(cfg.OutputDir(), cfg.ToolScripts(), cfg.IgnoreFilePath())
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load exclusion rules", err)
	}
	logger := logging.GetLogger("cli")
	logger.Debug().
		Str("file", cfg.IgnoreFilePath()).
		Bool("found", found).
		Int("rules", len(matcher.Rules())).
		Msg("Exclusion rules compiled")

	// Step 3: Either test the given paths or list the rules.
	if len(paths) > 0 {
		decisions := make([]decisionJSON, 0, len(paths))
		for _, p := range paths {
			d := decisionJSON{Path: model.NormalizePath(p)}
			if rule, ok := matcher.Match(p); ok {
				d.Excluded = true
				rj := toRuleJSON(rule)
				d.Rule = &rj
			}
			decisions = append(decisions, d)
		}
		if IsJSONOutput() {
			return writeJSON(cmd, map[string]interface{}{"paths": decisions})
		}
		printDecisionsText(cmd.OutOrStdout(), decisions)
		return nil
	}

	rules := matcher.Rules()
	if IsJSONOutput() {
		out := make([]ruleJSON, 0, len(rules))
		for _, r := range rules {
			out = append(out, toRuleJSON(r))
		}
		return writeJSON(cmd, map[string]interface{}{"rules": out})
	}
	printRulesText(cmd.OutOrStdout(), rules, found, cfg.IgnoreFile())
	return nil
}

func toRuleJSON(r exclude.Rule) ruleJSON {
	return ruleJSON{
		Origin:  r.Origin.String(),
		Line:    r.Line,
		Raw:     r.Raw,
		Pattern: r.Expr.String(),
	}
}

// printRulesText outputs the rules as a text table with aligned columns.
//
// The table format is:
//
//	ORIGIN    LINE  PATTERN              SOURCE
//	builtin   -     ^\.git               -
//	user      3     node_modules/.*      node_modules/
func printRulesText(w io.Writer, rules []exclude.Rule, found bool, ignoreFile string) {
	if !found {
		fmt.Fprintf(w, "No %s found, only built-in rules apply.\n\n", ignoreFile)
	}

	fmt.Fprintf(w, "%-9s %-5s %-30s %s\n", "ORIGIN", "LINE", "PATTERN", "SOURCE")
	for _, r := range rules {
		fmt.Fprintf(w, "%-9s %-5s %-30s %s\n",
			r.Origin.String(),
			FormatRuleLine(r),
			r.Expr.String(),
			FormatRuleSource(r),
		)
	}
}

// printDecisionsText outputs one line per tested path.
//
//	PATH                            RESULT    RULE
//	config/app.php                  included  -
//	node_modules/x/index.js         excluded  node_modules/ (line 3)
func printDecisionsText(w io.Writer, decisions []decisionJSON) {
	fmt.Fprintf(w, "%-40s %-9s %s\n", "PATH", "RESULT", "RULE")
	for _, d := range decisions {
		result, rule := "included", "-"
		if d.Excluded {
			result = "excluded"
			rule = FormatDecisionRule(d.Rule)
		}
		fmt.Fprintf(w, "%-40s %-9s %s\n", d.Path, result, rule)
	}
}

// FormatRuleLine returns the ignore file line number, or "-" for a
// built-in rule.
func FormatRuleLine(r exclude.Rule) string {
	if r.Line == 0 {
		return "-"
	}
	return strconv.Itoa(r.Line)
}

// FormatRuleSource returns the ignore file text a rule was compiled from,
// or "-" for built-in rules whose pattern is its own source.
func FormatRuleSource(r exclude.Rule) string {
	if r.Origin == model.OriginBuiltin {
		return "-"
	}
	return r.Raw
}

// FormatDecisionRule describes the matching rule of an excluded path.
//
// Example:
//
//	{Origin: "user", Line: 3, Raw: "node_modules/"} → "node_modules/ (line 3)"
//	{Origin: "builtin", Pattern: "^\.git"}          → "^\.git (builtin)"
func FormatDecisionRule(r *ruleJSON) string {
	if r == nil {
		return "-"
	}
	if r.Origin == model.OriginBuiltin.String() {
		return r.Pattern + " (builtin)"
	}
	return fmt.Sprintf("%s (line %d)", r.Raw, r.Line)
}

// FormatDirList joins directory names with ", ". Returns "-" if empty.
func FormatDirList(dirs []model.RequiredDirectory) string {
	if len(dirs) == 0 {
		return "-"
	}
	names := make([]string, 0, len(dirs))
	for _, d := range dirs {
		names = append(names, d.String())
	}
	return strings.Join(names, ", ")
}
