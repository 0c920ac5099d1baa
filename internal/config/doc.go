// Package config builds the immutable configuration value for a packaging run.
//
// Configuration is layered with koanf, later layers overriding earlier ones:
//
//  1. compiled-in defaults (the historical constants of the packaging script)
//  2. the user-global file $XDG_CONFIG_HOME/release-packager/config.yaml
//  3. the project file (--config, or .packager.{yaml,yml,toml,jsonc,json})
//  4. PACKAGER_* environment variables
//
// JSON project files may contain comments; github.com/tidwall/jsonc strips
// them before parsing. Every layer is optional.
//
// The resulting Config is constructed once at startup and passed by value to
// each component. Its fields are unexported and accessors return copies, so
// no component can change what another one sees.
package config
