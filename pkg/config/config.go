// Package config loads oreflow settings from TOML or YAML files.
//
// Settings start from [Default]; a file only needs the keys it changes.
// The CLI looks for a file given by --config, then for
// $XDG_CONFIG_HOME/oreflow/config.toml, and falls back to defaults. Command
// line flags override whatever the file sets.
//
//	[rates]
//	max_machine_output = 5.0
//	max_belt_output = 5.0
//
//	[model]
//	ore_counting = "footprint"
//
//	[solver]
//	timeout = "60s"
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/oreflow/pkg/errors"
	"github.com/matzehuels/oreflow/pkg/grid"
	"github.com/matzehuels/oreflow/pkg/model"
	"github.com/matzehuels/oreflow/pkg/render"
)

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete settings tree.
type Config struct {
	Rates    Rates    `toml:"rates" yaml:"rates"`
	Model    Model    `toml:"model" yaml:"model"`
	Alphabet Alphabet `toml:"alphabet" yaml:"alphabet"`
	Glyphs   Glyphs   `toml:"glyphs" yaml:"glyphs"`
	Solver   Solver   `toml:"solver" yaml:"solver"`
	Cache    Cache    `toml:"cache" yaml:"cache"`
	History  History  `toml:"history" yaml:"history"`
	Server   Server   `toml:"server" yaml:"server"`
}

type Rates struct {
	MaxMachineOutput float64 `toml:"max_machine_output" yaml:"max_machine_output"`
	MaxBeltOutput    float64 `toml:"max_belt_output" yaml:"max_belt_output"`
}

type Model struct {
	OreCounting string `toml:"ore_counting" yaml:"ore_counting"`
	Prune       bool   `toml:"prune" yaml:"prune"`
}

// Alphabet holds the map file symbols.
type Alphabet struct {
	Inaccessible string `toml:"inaccessible" yaml:"inaccessible"`
	Empty        string `toml:"empty" yaml:"empty"`
	Ore          string `toml:"ore" yaml:"ore"`
}

// Glyphs holds the output symbols.
type Glyphs struct {
	Empty   string `toml:"empty" yaml:"empty"`
	Machine string `toml:"machine" yaml:"machine"`
	North   string `toml:"north" yaml:"north"`
	East    string `toml:"east" yaml:"east"`
	South   string `toml:"south" yaml:"south"`
	West    string `toml:"west" yaml:"west"`
}

type Solver struct {
	// Timeout bounds one solve. Zero disables the limit.
	Timeout   Duration `toml:"timeout" yaml:"timeout"`
	NodeLimit int      `toml:"node_limit" yaml:"node_limit"`
}

// Cache backends.
const (
	CacheFile  = "file"
	CacheNone  = "none"
	CacheRedis = "redis"
	CacheMongo = "mongo"
)

type Cache struct {
	Backend         string   `toml:"backend" yaml:"backend"`
	Dir             string   `toml:"dir" yaml:"dir"`
	TTL             Duration `toml:"ttl" yaml:"ttl"`
	RedisURL        string   `toml:"redis_url" yaml:"redis_url"`
	MongoURI        string   `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase   string   `toml:"mongo_database" yaml:"mongo_database"`
	MongoCollection string   `toml:"mongo_collection" yaml:"mongo_collection"`
}

type History struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type Server struct {
	Addr string `toml:"addr" yaml:"addr"`
	// MaxCells rejects maps larger than this. Zero means no limit.
	MaxCells int `toml:"max_cells" yaml:"max_cells"`
}

// Default returns the built-in settings.
func Default() Config {
	da := grid.DefaultAlphabet()
	dg := render.DefaultGlyphs()
	return Config{
		Rates: Rates{
			MaxMachineOutput: model.DefaultMaxMachineOutput,
			MaxBeltOutput:    model.DefaultMaxBeltOutput,
		},
		Model: Model{OreCounting: string(model.OreFootprint), Prune: true},
		Alphabet: Alphabet{
			Inaccessible: string(da.Inaccessible),
			Empty:        string(da.Empty),
			Ore:          string(da.Ore),
		},
		Glyphs: Glyphs{
			Empty:   string(dg.Empty),
			Machine: string(dg.Machine),
			North:   string(dg.North),
			East:    string(dg.East),
			South:   string(dg.South),
			West:    string(dg.West),
		},
		Solver: Solver{Timeout: Duration(60 * time.Second)},
		Cache: Cache{
			Backend:         CacheFile,
			Dir:             DefaultCacheDir(),
			TTL:             Duration(30 * 24 * time.Hour),
			MongoDatabase:   "oreflow",
			MongoCollection: "cache",
		},
		History: History{Enabled: true, Path: DefaultHistoryPath()},
		Server:  Server{Addr: ":8080", MaxCells: 400},
	}
}

// DefaultCacheDir returns the per-user cache directory.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "oreflow")
	}
	return filepath.Join(os.TempDir(), "oreflow-cache")
}

// DefaultHistoryPath returns the per-user run history database.
func DefaultHistoryPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "oreflow", "history.db")
	}
	return filepath.Join(os.TempDir(), "oreflow-history.db")
}

// DefaultPath returns $XDG_CONFIG_HOME/oreflow/config.toml, or "" when the
// user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "oreflow", "config.toml")
}

// Load reads path over the defaults. The format is chosen by extension:
// .toml, or .yaml/.yml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %s", path, undecoded[0])
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	default:
		return cfg, errors.New(errors.ErrCodeInvalidConfig,
			"config %s: unsupported extension %q (want .toml, .yaml or .yml)", path, filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve loads explicit if set, otherwise the default file if it exists,
// otherwise the defaults. It returns the path that was read, or "".
func Resolve(explicit string) (Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}
	if p := DefaultPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if _, err := c.GridAlphabet(); err != nil {
		return err
	}
	if _, err := c.RenderGlyphs(); err != nil {
		return err
	}
	if c.Solver.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "solver timeout must not be negative")
	}
	if c.Solver.NodeLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "solver node_limit must not be negative")
	}
	switch c.Cache.Backend {
	case CacheFile:
		if c.Cache.Dir == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache dir is required for the file backend")
		}
	case CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache redis_url is required for the redis backend")
		}
	case CacheMongo:
		if c.Cache.MongoURI == "" || c.Cache.MongoDatabase == "" || c.Cache.MongoCollection == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache mongo_uri, mongo_database and mongo_collection are required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "history path is required when history is enabled")
	}
	if c.Server.MaxCells < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server max_cells must not be negative")
	}
	return nil
}

// Params returns the model parameters.
func (c Config) Params() model.Params {
	return model.Params{
		MaxMachineOutput: c.Rates.MaxMachineOutput,
		MaxBeltOutput:    c.Rates.MaxBeltOutput,
		OreCounting:      model.OreCounting(c.Model.OreCounting),
	}
}

// GridAlphabet converts the map symbols.
func (c Config) GridAlphabet() (grid.Alphabet, error) {
	syms := map[string]string{
		"inaccessible": c.Alphabet.Inaccessible,
		"empty":        c.Alphabet.Empty,
		"ore":          c.Alphabet.Ore,
	}
	for _, name := range []string{"inaccessible", "empty", "ore"} {
		if err := errors.ValidateSymbol("alphabet "+name, syms[name]); err != nil {
			return grid.Alphabet{}, err
		}
	}
	a := grid.Alphabet{
		Inaccessible: []rune(c.Alphabet.Inaccessible)[0],
		Empty:        []rune(c.Alphabet.Empty)[0],
		Ore:          []rune(c.Alphabet.Ore)[0],
	}
	return a, a.Validate()
}

// RenderGlyphs converts the output symbols.
func (c Config) RenderGlyphs() (render.Glyphs, error) {
	names := []string{"empty", "machine", "north", "east", "south", "west"}
	syms := []string{c.Glyphs.Empty, c.Glyphs.Machine, c.Glyphs.North, c.Glyphs.East, c.Glyphs.South, c.Glyphs.West}
	runes := make([]rune, len(syms))
	for i, s := range syms {
		if err := errors.ValidateSymbol("glyph "+names[i], s); err != nil {
			return render.Glyphs{}, err
		}
		runes[i] = []rune(s)[0]
	}
	g := render.Glyphs{
		Empty:   runes[0],
		Machine: runes[1],
		North:   runes[2],
		East:    runes[3],
		South:   runes[4],
		West:    runes[5],
	}
	return g, g.Validate()
}
