// Package config loads and validates luadoc.toml.
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/luadoc/internal/options"
)

// FileName is the base name of the configuration file, without extension.
const FileName = "luadoc"

// Backend names.
const (
	BackendLuaLS   = "luals"
	BackendEmmyLua = "emmylua"
	BackendSource  = "source"
)

var (
	backends    = []string{BackendEmmyLua, BackendLuaLS, BackendSource}
	luaVersions = []string{"jit", "5.1", "5.2", "5.3", "5.4", "5.5"}
	formats     = []string{"rst", "md"}
	versionRe   = regexp.MustCompile(`^\d+(\.\d+)*$`)
)

// Config is the validated configuration. All paths are absolute.
type Config struct {
	// Dir is the directory of the configuration file, or the working
	// directory when there is none.
	Dir string
	// File is the configuration file used, if any.
	File string

	ProjectRoot        string
	Backend            string
	ProjectDirectories []string
	MinVersion         string
	SkipVersions       []string
	LuaVersion         string

	DefaultOptions options.Set

	Apidoc      ApidocDefaults
	ApidocRoots []ApidocRoot

	ClassDefaultFunctionName    string
	ClassDefaultForceNonColon   bool
	ClassDefaultForceReturnSelf bool

	MaximumSignatureLineLength int
}

// ApidocDefaults apply to every apidoc root that does not override them.
type ApidocDefaults struct {
	Options         options.Set
	MaxDepth        int
	IgnoredModules  []string
	Format          string
	SeparateMembers bool
}

// ApidocRoot generates pages for one module hierarchy.
type ApidocRoot struct {
	Module string
	Path   string
	ApidocDefaults
}

// FieldError is a validation failure of one configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

type raw struct {
	ProjectRoot                 string         `mapstructure:"project_root"`
	Backend                     string         `mapstructure:"backend"`
	ProjectDirectories          []string       `mapstructure:"project_directories"`
	MinVersion                  string         `mapstructure:"min_version"`
	SkipVersions                []string       `mapstructure:"skip_versions"`
	LuaVersion                  string         `mapstructure:"lua_version"`
	DefaultOptions              map[string]any `mapstructure:"default_options"`
	ApidocDefaultOptions        map[string]any `mapstructure:"apidoc_default_options"`
	ApidocMaxDepth              int            `mapstructure:"apidoc_max_depth"`
	ApidocIgnoredModules        []string       `mapstructure:"apidoc_ignored_modules"`
	ApidocFormat                string         `mapstructure:"apidoc_format"`
	ApidocSeparateMembers       bool           `mapstructure:"apidoc_separate_members"`
	ApidocRoots                 map[string]any `mapstructure:"apidoc_roots"`
	ClassDefaultFunctionName    string         `mapstructure:"class_default_function_name"`
	ClassDefaultForceNonColon   bool           `mapstructure:"class_default_force_non_colon"`
	ClassDefaultForceReturnSelf bool           `mapstructure:"class_default_force_return_self"`
	MaximumSignatureLineLength  int            `mapstructure:"maximum_signature_line_length"`
}

func newViper() *viper.Viper {
	// Module names in apidoc_roots contain dots.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetDefault("project_root", ".")
	v.SetDefault("backend", BackendEmmyLua)
	v.SetDefault("apidoc_max_depth", 4)
	v.SetDefault("apidoc_format", "rst")
	return v
}

// Load reads the configuration file at path, or looks for luadoc.toml
// (or .yaml, .json) in dir when path is empty. A missing file yields the
// defaults. Every invalid field is reported.
func Load(path, dir string) (*Config, error) {
	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Errorf("reading config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
	}

	file := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Errorf("reading config: %w", err)
		}
	} else {
		file = v.ConfigFileUsed()
		dir = filepath.Dir(file)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Errorf("resolving %s: %w", dir, err)
	}

	var errs *multierror.Error
	for _, key := range v.AllKeys() {
		top, _, _ := strings.Cut(key, "::")
		if !slices.Contains(knownKeys, top) {
			errs = multierror.Append(errs, &FieldError{Field: top, Message: "unknown key"})
		}
	}

	var r raw
	if err := v.Unmarshal(&r); err != nil {
		return nil, errors.Errorf("decoding config: %w", err)
	}

	names, err := rootNames(file)
	if err != nil {
		return nil, err
	}

	cfg, verrs := r.validate(abs, names)
	errs = multierror.Append(errs, verrs...)
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	cfg.File = file
	return cfg, nil
}

var knownKeys = []string{
	"project_root", "backend", "project_directories", "min_version", "skip_versions",
	"lua_version", "default_options", "apidoc_default_options", "apidoc_max_depth",
	"apidoc_ignored_modules", "apidoc_format", "apidoc_separate_members", "apidoc_roots",
	"class_default_function_name", "class_default_force_non_colon",
	"class_default_force_return_self", "maximum_signature_line_length",
}

// rootNames maps the lower-cased apidoc_roots keys viper reports back to
// their spelling in the file. Module names are case sensitive.
func rootNames(file string) (map[string]string, error) {
	if file == "" {
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Errorf("reading config: %w", err)
	}

	var doc struct {
		ApidocRoots map[string]any `json:"apidoc_roots" toml:"apidoc_roots" yaml:"apidoc_roots"`
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("decoding config: %w", err)
	}

	names := make(map[string]string, len(doc.ApidocRoots))
	for name := range doc.ApidocRoots {
		names[strings.ToLower(name)] = name
	}
	return names, nil
}

func (r *raw) validate(dir string, names map[string]string) (*Config, []error) {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	cfg := &Config{
		Dir:                         dir,
		ProjectRoot:                 resolve(dir, r.ProjectRoot),
		Backend:                     r.Backend,
		MinVersion:                  r.MinVersion,
		SkipVersions:                r.SkipVersions,
		LuaVersion:                  r.LuaVersion,
		ClassDefaultFunctionName:    r.ClassDefaultFunctionName,
		ClassDefaultForceNonColon:   r.ClassDefaultForceNonColon,
		ClassDefaultForceReturnSelf: r.ClassDefaultForceReturnSelf,
		MaximumSignatureLineLength:  r.MaximumSignatureLineLength,
	}

	if !slices.Contains(backends, r.Backend) {
		fail("backend", "should be one of %s, got %q", strings.Join(backends, ", "), r.Backend)
	}
	for _, d := range r.ProjectDirectories {
		cfg.ProjectDirectories = append(cfg.ProjectDirectories, resolve(cfg.ProjectRoot, d))
	}
	if r.MinVersion != "" && !versionRe.MatchString(r.MinVersion) {
		fail("min_version", "incorrect version %q", r.MinVersion)
	}
	for i, s := range r.SkipVersions {
		if !versionRe.MatchString(s) {
			fail(fmt.Sprintf("skip_versions[%d]", i), "incorrect version %q", s)
		}
	}
	if r.LuaVersion != "" && !slices.Contains(luaVersions, r.LuaVersion) {
		fail("lua_version", "should be one of %s, got %q", strings.Join(luaVersions, ", "), r.LuaVersion)
	}
	if r.MaximumSignatureLineLength < 0 {
		fail("maximum_signature_line_length", "should not be negative")
	}

	var err error
	cfg.DefaultOptions, err = parseOptions("default_options", r.DefaultOptions)
	if err != nil {
		errs = append(errs, err)
	}
	apidocOptions, err := parseOptions("apidoc_default_options", r.ApidocDefaultOptions)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.Apidoc = ApidocDefaults{
		Options:         apidocOptions.Merge(cfg.DefaultOptions),
		MaxDepth:        r.ApidocMaxDepth,
		IgnoredModules:  r.ApidocIgnoredModules,
		Format:          r.ApidocFormat,
		SeparateMembers: r.ApidocSeparateMembers,
	}
	if !slices.Contains(formats, r.ApidocFormat) {
		fail("apidoc_format", "should be one of rst, md, got %q", r.ApidocFormat)
	}
	if r.ApidocMaxDepth < 0 {
		fail("apidoc_max_depth", "should not be negative")
	}

	for _, key := range slices.Sorted(maps.Keys(r.ApidocRoots)) {
		mod := key
		if name, ok := names[key]; ok {
			mod = name
		}
		root, rootErrs := parseRoot(fmt.Sprintf("apidoc_roots[%q]", mod), mod, r.ApidocRoots[key], dir, cfg.Apidoc)
		errs = append(errs, rootErrs...)
		if rootErrs == nil {
			cfg.ApidocRoots = append(cfg.ApidocRoots, root)
		}
	}
	return cfg, errs
}

func parseRoot(field, mod string, value any, dir string, defaults ApidocDefaults) (ApidocRoot, []error) {
	var errs []error
	fail := func(sub, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field + sub, Message: fmt.Sprintf(format, args...)})
	}

	root := ApidocRoot{Module: mod, ApidocDefaults: defaults}
	var table map[string]any
	switch v := value.(type) {
	case string:
		table = map[string]any{"path": v}
	case map[string]any:
		table = maps.Clone(v)
	default:
		fail("", "should be a path or a table, got %T", value)
		return root, errs
	}

	path, ok := table["path"].(string)
	delete(table, "path")
	if !ok {
		fail("[path]", "should be a string")
	} else {
		root.Path = resolve(dir, path)
		if !within(dir, root.Path) {
			fail("", "lies outside of the source root: %s", root.Path)
		}
	}

	if raw, ok := table["options"]; ok {
		delete(table, "options")
		opts, _ := raw.(map[string]any)
		if raw != nil && opts == nil {
			fail("[options]", "should be a table")
		}
		parsed, err := parseOptions(field+"[options]", opts)
		if err != nil {
			errs = append(errs, err)
		}
		root.Options = parsed.Merge(defaults.Options)
	}
	if raw, ok := table["max_depth"]; ok {
		delete(table, "max_depth")
		switch n := raw.(type) {
		case int:
			root.MaxDepth = n
		case int64:
			root.MaxDepth = int(n)
		case float64:
			root.MaxDepth = int(n)
			if float64(root.MaxDepth) != n {
				fail("[max_depth]", "should be an integer, got %v", n)
			}
		default:
			fail("[max_depth]", "should be an integer, got %T", raw)
		}
	}
	if raw, ok := table["ignored_modules"]; ok {
		delete(table, "ignored_modules")
		list, _ := raw.([]any)
		root.IgnoredModules = nil
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				fail(fmt.Sprintf("[ignored_modules][%d]", i), "should be a string")
				continue
			}
			root.IgnoredModules = append(root.IgnoredModules, s)
		}
	}
	if raw, ok := table["format"]; ok {
		delete(table, "format")
		s, _ := raw.(string)
		if !slices.Contains(formats, s) {
			fail("[format]", "should be one of rst, md, got %v", raw)
		}
		root.Format = s
	}
	if raw, ok := table["separate_members"]; ok {
		delete(table, "separate_members")
		b, ok := raw.(bool)
		if !ok {
			fail("[separate_members]", "should be a boolean")
		}
		root.SeparateMembers = b
	}
	if len(table) > 0 {
		fail("", "unknown keys: %s", strings.Join(slices.Sorted(maps.Keys(table)), ", "))
	}
	return root, errs
}

// parseOptions validates an option table. A true value stands for a flag.
func parseOptions(field string, values map[string]any) (options.Set, error) {
	raw := make(map[string]string, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		switch v := values[name].(type) {
		case string:
			raw[name] = v
		case bool:
			if v {
				raw[name] = ""
			}
		default:
			return nil, &FieldError{Field: fmt.Sprintf("%s[%s]", field, name), Message: fmt.Sprintf("should be a string, got %T", v)}
		}
	}
	s, err := options.New(raw)
	if err != nil {
		return nil, &FieldError{Field: field, Message: err.Error()}
	}
	return s, nil
}

func resolve(dir, path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return filepath.Clean(path)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
