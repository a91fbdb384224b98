package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from $IMGPLACE_CONFIG if set, else the XDG
// config search path, else returns DefaultConfig(). Environment option
// overrides (IMGPLACE_<OPTION>) are always applied on top.
func Load() (*Config, error) {
	if p := os.Getenv("IMGPLACE_CONFIG"); p != "" {
		return LoadFromFile(p)
	}
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads configuration from a specific TOML file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes TOML from r over DefaultConfig(), then applies
// environment overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	for _, key := range meta.Keys() {
		cfg.setProvenance(strings.Join(key, "."), "file")
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides walks every IMGPLACE_<OPTION> environment variable
// and assigns it onto the matching Config field, recording provenance.
// <OPTION> is the field's dotted TOML path with dots replaced by
// underscores and upper-cased, e.g. IMGPLACE_UPLOAD_NUM_ATTEMPTS for
// upload.num_attempts.
func applyEnvOverrides(cfg *Config) {
	for _, field := range enumerateFields(reflect.ValueOf(cfg).Elem(), nil) {
		envName := "IMGPLACE_" + strings.ToUpper(strings.Join(field.path, "_"))
		v, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		if err := assignString(field.value, v); err == nil {
			cfg.setProvenance(strings.Join(field.path, "."), "env")
		}
	}
}

type fieldRef struct {
	path  []string
	value reflect.Value
}

// enumerateFields walks a Config's nested struct fields, collecting a
// dotted toml-tag path to each leaf (non-struct) field.
func enumerateFields(v reflect.Value, prefix []string) []fieldRef {
	var out []fieldRef
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		fv := v.Field(i)
		path := append(append([]string(nil), prefix...), tag)
		if fv.Kind() == reflect.Struct && sf.Type != reflect.TypeOf(Duration{}) {
			out = append(out, enumerateFields(fv, path)...)
			continue
		}
		out = append(out, fieldRef{path: path, value: fv})
	}
	return out
}

func assignString(v reflect.Value, s string) error {
	switch {
	case v.Type() == reflect.TypeOf(Duration{}):
		var d Duration
		if err := d.UnmarshalText([]byte(s)); err != nil {
			return err
		}
		v.Set(reflect.ValueOf(d))
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("config: unsupported field kind %s", v.Kind())
	}
	return nil
}

// WithOverrides returns a copy of c with each key=value pair in
// overrides applied (flag provenance). Keys use the same dotted path
// as TOML tags, e.g. "display.cols".
func (c *Config) WithOverrides(overrides map[string]string) (*Config, error) {
	cp := *c
	cp.provenance = make(map[string]string, len(c.provenance))
	for k, v := range c.provenance {
		cp.provenance[k] = v
	}

	byPath := make(map[string]reflect.Value)
	for _, f := range enumerateFields(reflect.ValueOf(&cp).Elem(), nil) {
		byPath[strings.Join(f.path, ".")] = f.value
	}
	for k, v := range overrides {
		fv, ok := byPath[k]
		if !ok {
			return nil, fmt.Errorf("config: unknown override key %q", k)
		}
		if err := assignString(fv, v); err != nil {
			return nil, fmt.Errorf("config: override %q=%q: %w", k, v, err)
		}
		cp.setProvenance(k, "flag")
	}
	return &cp, nil
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := osUserHomeDir()
	var paths []string
	xdg := xdgHome(home, "XDG_CONFIG_HOME", ".config")
	paths = append(paths, filepath.Join(xdg, "imgplace", "config.toml"))
	return paths
}

func xdgPath(home, kind, app, leaf string) string {
	var envVar, fallback string
	switch kind {
	case "state":
		envVar, fallback = "XDG_STATE_HOME", ".local/state"
	case "cache":
		envVar, fallback = "XDG_CACHE_HOME", ".cache"
	default:
		envVar, fallback = "XDG_CONFIG_HOME", ".config"
	}
	base := xdgHome(home, envVar, fallback)
	return filepath.Join(base, app, leaf)
}

func xdgHome(home, envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return filepath.Join(home, fallback)
}

func osUserHomeDir() (string, error) {
	return os.UserHomeDir()
}
