package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/release-packager/internal/logging"
	"github.com/shinji-kodama/release-packager/internal/model"
)

// EnvPrefix is the prefix of environment variables that override
// configuration keys, e.g. PACKAGER_OUTPUT_DIR.
const EnvPrefix = "PACKAGER_"

// ProjectFileNames are searched in the project root, first match wins.
var ProjectFileNames = []string{
	".packager.yaml",
	".packager.yml",
	".packager.toml",
	".packager.jsonc",
	".packager.json",
}

// UserConfigFile is the user-global config path relative to XDG_CONFIG_HOME.
var UserConfigFile = filepath.Join(AppName, "config.yaml")

// listKeys hold comma separated values when set from the environment.
var listKeys = map[string]bool{
	"required_dirs": true,
	"runtime_dirs":  true,
	"tool_scripts":  true,
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// Root is the project directory to package. Relative paths are
	// resolved against the working directory. Defaults to ".".
	Root string

	// ConfigFile is an explicit project config file. When set, it must
	// exist and the project root is not searched.
	ConfigFile string

	// UserConfigFile overrides the XDG lookup of the user-global file.
	UserConfigFile string

	// SkipUserConfig disables the user-global layer entirely.
	SkipUserConfig bool

	// SkipEnv disables the PACKAGER_* environment layer.
	SkipEnv bool
}

// fileConfig is the koanf unmarshal target. It mirrors Config with
// exported fields so that Config itself can stay immutable.
type fileConfig struct {
	NamePrefix           string   `koanf:"name_prefix"`
	OutputDir            string   `koanf:"output_dir"`
	IgnoreFile           string   `koanf:"ignore_file"`
	RequiredDirs         []string `koanf:"required_dirs"`
	RuntimeDirs          []string `koanf:"runtime_dirs"`
	RuntimeMarker        string   `koanf:"runtime_marker"`
	RuntimeMarkerContent string   `koanf:"runtime_marker_content"`
	ToolScripts          []string `koanf:"tool_scripts"`
	DeployTarget         string   `koanf:"deploy_target"`
	WriteManifest        bool     `koanf:"write_manifest"`
}

// Load builds the run configuration from all layers and validates it.
// Errors are returned as model.CLIError with ExitConfigInvalid.
func Load(opts LoadOptions) (Config, error) {
	logger := logging.GetLogger("config")

	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid, "failed to resolve project root", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("project root %s is not accessible", absRoot), err)
	}
	if !info.IsDir() {
		return Config{}, model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("project root %s is not a directory", absRoot))
	}

	k := koanf.New(".")
	var sources []string

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid, "failed to load defaults", err)
	}

	// 2. User-global file
	if !opts.SkipUserConfig {
		userPath := opts.UserConfigFile
		if userPath == "" {
			// SearchConfigFile only returns existing files.
			if found, searchErr := xdg.SearchConfigFile(UserConfigFile); searchErr == nil {
				userPath = found
			}
		}
		if userPath != "" {
			if _, statErr := os.Stat(userPath); statErr == nil {
				if err := loadFile(k, userPath); err != nil {
					return Config{}, err
				}
				sources = append(sources, userPath)
				logger.Debug().Str("path", userPath).Msg("Loaded user config")
			}
		}
	}

	// 3. Project file
	projectPath, err := findProjectFile(absRoot, opts.ConfigFile)
	if err != nil {
		return Config{}, err
	}
	if projectPath != "" {
		if err := loadFile(k, projectPath); err != nil {
			return Config{}, err
		}
		sources = append(sources, projectPath)
		logger.Debug().Str("path", projectPath).Msg("Loaded project config")
	}

	// 4. Environment
	if !opts.SkipEnv {
		provider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
			name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			if listKeys[name] {
				return name, splitList(value)
			}
			return name, value
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, model.WrapCLIError(model.ExitConfigInvalid, "failed to read environment", err)
		}
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid, "failed to decode configuration", err)
	}

	cfg := Config{
		root:                 absRoot,
		namePrefix:           strings.TrimSpace(fc.NamePrefix),
		outputDir:            trimDir(fc.OutputDir),
		ignoreFile:           strings.TrimSpace(fc.IgnoreFile),
		requiredDirs:         trimDirs(fc.RequiredDirs),
		runtimeDirs:          trimDirs(fc.RuntimeDirs),
		runtimeMarker:        strings.TrimSpace(fc.RuntimeMarker),
		runtimeMarkerContent: fc.RuntimeMarkerContent,
		toolScripts:          trimDirs(fc.ToolScripts),
		deployTarget:         strings.TrimSpace(fc.DeployTarget),
		writeManifest:        fc.WriteManifest,
		sources:              sources,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, model.WrapCLIError(model.ExitConfigInvalid, "invalid configuration", err)
	}

	logger.Debug().
		Str("root", cfg.root).
		Str("outputDir", cfg.outputDir).
		Strs("requiredDirs", cfg.requiredDirs).
		Strs("sources", sources).
		Msg("Configuration loaded")
	return cfg, nil
}

// defaultMap expresses Default as a flat koanf map.
func defaultMap() map[string]interface{} {
	return map[string]interface{}{
		"name_prefix":            DefaultNamePrefix,
		"output_dir":             DefaultOutputDir,
		"ignore_file":            DefaultIgnoreFile,
		"required_dirs":          cloneStrings(DefaultRequiredDirs),
		"runtime_dirs":           cloneStrings(DefaultRuntimeDirs),
		"runtime_marker":         DefaultRuntimeMarker,
		"runtime_marker_content": DefaultRuntimeMarkerContent,
		"tool_scripts":           cloneStrings(DefaultToolScripts),
		"deploy_target":          "",
		"write_manifest":         false,
	}
}

// findProjectFile returns the explicit config file, or the first project
// file present in root, or "" when there is none.
func findProjectFile(root, explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", model.WrapCLIError(model.ExitConfigInvalid, "failed to resolve config path", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", model.WrapCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("config file not found: %s", abs), err)
		}
		return abs, nil
	}

	for _, name := range ProjectFileNames {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// loadFile merges one configuration file into k, choosing the parser from
// the file extension.
func loadFile(k *koanf.Koanf, path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = k.Load(file.Provider(path), yaml.Parser())
	case ".toml":
		err = k.Load(file.Provider(path), toml.Parser())
	case ".json", ".jsonc":
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			// Strip comments and trailing commas before handing the
			// document to encoding/json.
			var values map[string]interface{}
			if err = json.Unmarshal(jsonc.ToJSON(data), &values); err == nil {
				err = k.Load(confmap.Provider(values, ""), nil)
			}
		}
	default:
		return model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("unsupported config file format: %s", path))
	}
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to load config from %s", path), err)
	}
	return nil
}

// splitList splits a comma separated environment value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// trimDir normalizes a configured path to the form archive entry names
// use, so that it can serve as a rule or manifest prefix.
func trimDir(d string) string {
	return model.CleanPath(d)
}

func trimDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, trimDir(d))
	}
	return out
}
