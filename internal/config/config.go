// Package config defines pyweaver's typed configuration: global options plus
// one section per tool. Configuration merges in three layers: defaults, then
// keys present in the config file, then explicitly-set CLI flags.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// ConfigFileName is the YAML file resolved from a project root.
const ConfigFileName = ".pyweaver.yaml"

// CombinerSettings configures the file combiner tool.
type CombinerSettings struct {
	// OutputFile is where the combined content is written.
	OutputFile string `yaml:"output_file"`

	// ContentMode selects how much of each file survives: full, no_comments,
	// no_docstrings or minimal. Empty means resolve from the Remove* flags.
	ContentMode string `yaml:"content_mode"`

	// RemoveComments strips comments when ContentMode is unset.
	RemoveComments bool `yaml:"remove_comments"`

	// RemoveDocstrings strips docstrings when ContentMode is unset.
	RemoveDocstrings bool `yaml:"remove_docstrings"`

	// IncludeTree prepends a commented tree of the included files.
	IncludeTree bool `yaml:"include_tree"`

	// ShowFileStats appends a line/size note to each section header.
	ShowFileStats bool `yaml:"show_file_stats"`

	// RulerWidth is the width of the # rules around section headers.
	RulerWidth int `yaml:"ruler_width"`
}

// InitSettings configures the __init__.py generator.
type InitSettings struct {
	// DocstringTemplate is the module docstring; {package} and {path}
	// placeholders are substituted per file.
	DocstringTemplate string `yaml:"docstring_template"`

	// GenerateAll emits an __all__ block listing the exports.
	GenerateAll bool `yaml:"generate_all"`

	// IncludePrivate exports names with a leading underscore.
	IncludePrivate bool `yaml:"include_private"`

	// ConstantPatterns are name patterns classifying exports as constants
	// (e.g. "CONFIG_*"). ALL_CAPS names are always treated as constants.
	ConstantPatterns []string `yaml:"constant_patterns"`

	// ExcludedModules are module names (without .py) never imported from.
	ExcludedModules []string `yaml:"excluded_modules"`

	// DryRun collects previews without writing files.
	DryRun bool `yaml:"dry_run"`
}

// StructureSettings configures the directory-structure printer.
type StructureSettings struct {
	// Style is one of tree, flat, indented, markdown.
	Style string `yaml:"style"`

	// SortOrder is one of alpha, dirs_first, files_first, modified, size.
	SortOrder string `yaml:"sort_order"`

	// ShowSizes renders a human-readable size next to files.
	ShowSizes bool `yaml:"show_sizes"`

	// ShowModified renders the modification date next to entries.
	ShowModified bool `yaml:"show_modified"`

	// MaxDepth limits the rendered depth (0 = unlimited).
	MaxDepth int `yaml:"max_depth"`

	// IncludeEmpty keeps directories with no matching children.
	IncludeEmpty bool `yaml:"include_empty"`

	// OutputFile, when set, writes the report there instead of stdout.
	OutputFile string `yaml:"output_file"`
}

// ReadmeSettings configures the README docs-site transform.
type ReadmeSettings struct {
	// InputFile is the README to transform, relative to the project root.
	InputFile string `yaml:"input_file"`

	// OutputFile is where the transformed markdown is written.
	OutputFile string `yaml:"output_file"`

	// Title replaces the top-level heading text; empty keeps the original.
	Title string `yaml:"title"`

	// DropSections lists heading titles removed together with their bodies.
	DropSections []string `yaml:"drop_sections"`

	// LinkPrefix is prepended to repo-relative link targets.
	LinkPrefix string `yaml:"link_prefix"`

	// StripBadges removes badge image lines under the top heading.
	StripBadges bool `yaml:"strip_badges"`
}

// HistorySettings configures the run archive.
type HistorySettings struct {
	// Enabled records finished runs in the archive.
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
}

// Config is the root pyweaver configuration.
type Config struct {
	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is where run log files are written.
	LogDir string `yaml:"log_dir"`

	// MaxAttempts is the retry ceiling for failing items.
	MaxAttempts int `yaml:"max_attempts"`

	// Path selects which filesystem items are processed.
	Path PathSettings `yaml:"path"`

	// Combiner configures the combine tool.
	Combiner CombinerSettings `yaml:"combiner"`

	// Init configures the init-file generator.
	Init InitSettings `yaml:"init"`

	// Structure configures the structure printer.
	Structure StructureSettings `yaml:"structure"`

	// Readme configures the README transform.
	Readme ReadmeSettings `yaml:"readme"`

	// History configures the run archive.
	History HistorySettings `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		LogDir:      filepath.Join(".pyweaver", "logs"),
		MaxAttempts: 3,
		Path:        DefaultPathSettings(),
		Combiner: CombinerSettings{
			OutputFile: "combined_output.txt",
			RulerWidth: 80,
		},
		Init: InitSettings{
			DocstringTemplate: "{package} package.",
			GenerateAll:       true,
		},
		Structure: StructureSettings{
			Style:     "tree",
			SortOrder: "dirs_first",
		},
		Readme: ReadmeSettings{
			InputFile:   "README.md",
			OutputFile:  filepath.Join("docs", "index.md"),
			StripBadges: true,
		},
		History: HistorySettings{
			Enabled: true,
			DBPath:  filepath.Join(".pyweaver", "history.db"),
		},
	}
}

// LoadConfig loads configuration from the given YAML file, merged over
// defaults. Only keys actually present in the file override defaults. A
// missing file returns defaults without error; a malformed file returns a
// ConfigError.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewConfigError("load_config", "failed to read config file", err).
			WithCode(errs.CodeConfigPath).
			WithDetail("path", path)
	}

	// Probe which keys the file actually sets; absent keys keep defaults.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.NewConfigError("load_config", "failed to parse config file", err).
			WithCode(errs.CodeConfigParse).
			WithDetail("path", path)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, errs.NewConfigError("load_config", "failed to parse config file", err).
			WithCode(errs.CodeConfigParse).
			WithDetail("path", path)
	}

	if _, ok := raw["log_level"]; ok {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if _, ok := raw["log_dir"]; ok {
		cfg.LogDir = fileCfg.LogDir
	}
	if _, ok := raw["max_attempts"]; ok {
		cfg.MaxAttempts = fileCfg.MaxAttempts
	}
	if section, ok := raw["path"]; ok && section != nil {
		cfg.Path = mergeSection(cfg.Path, fileCfg.Path, section, func(keys map[string]bool, base, file PathSettings) PathSettings {
			if keys["ignore_patterns"] {
				base.IgnorePatterns = file.IgnorePatterns
			}
			if keys["include_patterns"] {
				base.IncludePatterns = file.IncludePatterns
			}
			if keys["max_depth"] {
				base.MaxDepth = file.MaxDepth
			}
			if keys["follow_symlinks"] {
				base.FollowSymlinks = file.FollowSymlinks
			}
			if keys["additional_options"] {
				base.AdditionalOptions = file.AdditionalOptions
			}
			return base
		})
	}
	if section, ok := raw["combiner"]; ok && section != nil {
		cfg.Combiner = mergeSection(cfg.Combiner, fileCfg.Combiner, section, func(keys map[string]bool, base, file CombinerSettings) CombinerSettings {
			if keys["output_file"] {
				base.OutputFile = file.OutputFile
			}
			if keys["content_mode"] {
				base.ContentMode = file.ContentMode
			}
			if keys["remove_comments"] {
				base.RemoveComments = file.RemoveComments
			}
			if keys["remove_docstrings"] {
				base.RemoveDocstrings = file.RemoveDocstrings
			}
			if keys["include_tree"] {
				base.IncludeTree = file.IncludeTree
			}
			if keys["show_file_stats"] {
				base.ShowFileStats = file.ShowFileStats
			}
			if keys["ruler_width"] {
				base.RulerWidth = file.RulerWidth
			}
			return base
		})
	}
	if section, ok := raw["init"]; ok && section != nil {
		cfg.Init = mergeSection(cfg.Init, fileCfg.Init, section, func(keys map[string]bool, base, file InitSettings) InitSettings {
			if keys["docstring_template"] {
				base.DocstringTemplate = file.DocstringTemplate
			}
			if keys["generate_all"] {
				base.GenerateAll = file.GenerateAll
			}
			if keys["include_private"] {
				base.IncludePrivate = file.IncludePrivate
			}
			if keys["constant_patterns"] {
				base.ConstantPatterns = file.ConstantPatterns
			}
			if keys["excluded_modules"] {
				base.ExcludedModules = file.ExcludedModules
			}
			if keys["dry_run"] {
				base.DryRun = file.DryRun
			}
			return base
		})
	}
	if section, ok := raw["structure"]; ok && section != nil {
		cfg.Structure = mergeSection(cfg.Structure, fileCfg.Structure, section, func(keys map[string]bool, base, file StructureSettings) StructureSettings {
			if keys["style"] {
				base.Style = file.Style
			}
			if keys["sort_order"] {
				base.SortOrder = file.SortOrder
			}
			if keys["show_sizes"] {
				base.ShowSizes = file.ShowSizes
			}
			if keys["show_modified"] {
				base.ShowModified = file.ShowModified
			}
			if keys["max_depth"] {
				base.MaxDepth = file.MaxDepth
			}
			if keys["include_empty"] {
				base.IncludeEmpty = file.IncludeEmpty
			}
			if keys["output_file"] {
				base.OutputFile = file.OutputFile
			}
			return base
		})
	}
	if section, ok := raw["readme"]; ok && section != nil {
		cfg.Readme = mergeSection(cfg.Readme, fileCfg.Readme, section, func(keys map[string]bool, base, file ReadmeSettings) ReadmeSettings {
			if keys["input_file"] {
				base.InputFile = file.InputFile
			}
			if keys["output_file"] {
				base.OutputFile = file.OutputFile
			}
			if keys["title"] {
				base.Title = file.Title
			}
			if keys["drop_sections"] {
				base.DropSections = file.DropSections
			}
			if keys["link_prefix"] {
				base.LinkPrefix = file.LinkPrefix
			}
			if keys["strip_badges"] {
				base.StripBadges = file.StripBadges
			}
			return base
		})
	}
	if section, ok := raw["history"]; ok && section != nil {
		cfg.History = mergeSection(cfg.History, fileCfg.History, section, func(keys map[string]bool, base, file HistorySettings) HistorySettings {
			if keys["enabled"] {
				base.Enabled = file.Enabled
			}
			if keys["db_path"] {
				base.DBPath = file.DBPath
			}
			return base
		})
	}

	return cfg, nil
}

// mergeSection applies a per-field merge using the set of keys present in the
// raw YAML section.
func mergeSection[T any](base, file T, rawSection any, apply func(keys map[string]bool, base, file T) T) T {
	keys := make(map[string]bool)
	if m, ok := rawSection.(map[string]any); ok {
		for k := range m {
			keys[k] = true
		}
	}
	return apply(keys, base, file)
}

// LoadConfigFromDir loads .pyweaver.yaml from the given directory, returning
// defaults when it is absent.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ConfigFileName))
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errs.NewConfigError("validate_config", "invalid log level", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("log_level", c.LogLevel)
	}
	if c.MaxAttempts < 1 {
		return errs.NewConfigError("validate_config", "max_attempts must be at least 1", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("max_attempts", c.MaxAttempts)
	}
	if err := c.Path.Validate(); err != nil {
		return err
	}
	switch c.Combiner.ContentMode {
	case "", "full", "no_comments", "no_docstrings", "minimal":
	default:
		return errs.NewConfigError("validate_config", "invalid combiner content mode", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("content_mode", c.Combiner.ContentMode)
	}
	switch c.Structure.Style {
	case "tree", "flat", "indented", "markdown":
	default:
		return errs.NewConfigError("validate_config", "invalid structure style", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("style", c.Structure.Style)
	}
	switch c.Structure.SortOrder {
	case "alpha", "dirs_first", "files_first", "modified", "size":
	default:
		return errs.NewConfigError("validate_config", "invalid structure sort order", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("sort_order", c.Structure.SortOrder)
	}
	if c.Readme.InputFile == "" || c.Readme.OutputFile == "" {
		return errs.NewConfigError("validate_config", "readme input and output files are required", nil).
			WithCode(errs.CodeConfigValidation)
	}
	return nil
}
