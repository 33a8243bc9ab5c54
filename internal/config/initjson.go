package config

import (
	"encoding/json"
	"os"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// InitConfigFileName is the legacy JSON configuration consumed by the init
// generator. It predates .pyweaver.yaml and is still read for compatibility.
const InitConfigFileName = "init_config.json"

// initConfigJSON mirrors the legacy file layout: generator options plus a
// flattened subset of the path settings.
type initConfigJSON struct {
	DocstringTemplate string   `json:"docstring_template"`
	GenerateAll       *bool    `json:"generate_all"`
	IncludePrivate    *bool    `json:"include_private"`
	ConstantPatterns  []string `json:"constant_patterns"`
	ExcludedModules   []string `json:"excluded_modules"`
	IgnorePatterns    []string `json:"ignore_patterns"`
	IncludePatterns   []string `json:"include_patterns"`
}

// LoadInitConfig reads init_config.json and applies it over the given init
// and path settings. A missing file leaves both untouched; a malformed file
// returns a ConfigError.
func LoadInitConfig(path string, init InitSettings, paths PathSettings) (InitSettings, PathSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return init, paths, nil
		}
		return init, paths, errs.NewConfigError("load_init_config", "failed to read init config", err).
			WithCode(errs.CodeConfigPath).
			WithDetail("path", path)
	}

	var raw initConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return init, paths, errs.NewConfigError("load_init_config", "failed to parse init config", err).
			WithCode(errs.CodeConfigParse).
			WithDetail("path", path)
	}

	if raw.DocstringTemplate != "" {
		init.DocstringTemplate = raw.DocstringTemplate
	}
	if raw.GenerateAll != nil {
		init.GenerateAll = *raw.GenerateAll
	}
	if raw.IncludePrivate != nil {
		init.IncludePrivate = *raw.IncludePrivate
	}
	if raw.ConstantPatterns != nil {
		init.ConstantPatterns = raw.ConstantPatterns
	}
	if raw.ExcludedModules != nil {
		init.ExcludedModules = raw.ExcludedModules
	}
	if raw.IgnorePatterns != nil {
		paths.IgnorePatterns = raw.IgnorePatterns
	}
	if raw.IncludePatterns != nil {
		paths.IncludePatterns = raw.IncludePatterns
	}

	return init, paths, nil
}
