package conf

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidLoadWorkers = errors.New("load workers must be positive")
	ErrInvalidDriver      = errors.New("invalid store driver")
)

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Config struct {
	Files        []string    `yaml:"files"`
	Plan         string      `yaml:"plan"`
	Decoders     []string    `yaml:"decoders"`
	ApplyOpacity bool        `yaml:"apply_opacity"`
	LoadWorkers  int         `yaml:"load_workers"`
	Format       string      `yaml:"format"`
	Chart        string      `yaml:"chart"`
	MetricsFile  string      `yaml:"metrics_file"`
	Debug        bool        `yaml:"debug"`
	Store        StoreConfig `yaml:"store"`
}

// ReadConfig overlays the YAML (or JSON) file at path onto config.
func ReadConfig(path string, config *Config) error {
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}

	err = yaml.Unmarshal(b, config)
	if err != nil {
		return fmt.Errorf("could not parse config: %w", err)
	}

	return nil
}

const defaultLoadWorkers = 4

var DefaultConfig = Config{
	Decoders:    []string{"lazy", "composite", "flags", "oov"},
	LoadWorkers: defaultLoadWorkers,
	Format:      "table",
}

func (c *Config) Validate() error {
	switch c.Format {
	case "table", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}

	if c.LoadWorkers < 1 {
		return ErrInvalidLoadWorkers
	}

	switch c.Store.Driver {
	case "", "postgres", "sqlite", "mysql":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Store.Driver)
	}

	return nil
}

// Flags binds the configuration flags to a flag set.
type Flags struct {
	fs       *pflag.FlagSet
	values   Config
	confPath string
}

func NewFlags(flags *pflag.FlagSet) *Flags {
	f := &Flags{fs: flags}
	v := &f.values

	flags.StringSliceVarP(&v.Files, "file", "f", nil, "document to benchmark, repeatable")
	flags.StringVar(&v.Plan, "plan", "", "csv plan with file,decoder,apply_opacity rows, - for stdin")
	flags.StringSliceVarP(&v.Decoders, "decoder", "d", DefaultConfig.Decoders, "decoders to compare")
	flags.BoolVar(&v.ApplyOpacity, "apply-opacity", DefaultConfig.ApplyOpacity, "honor layer opacity when compositing")
	flags.IntVar(&v.LoadWorkers, "load-workers", DefaultConfig.LoadWorkers, "files read concurrently before measuring")
	flags.StringVar(&v.Format, "format", DefaultConfig.Format, "output format, table or json")
	flags.StringVar(&v.Chart, "chart", "", "write an html bar chart to this path")
	flags.StringVar(&v.MetricsFile, "metrics-file", "", "write prometheus textfile metrics to this path")
	flags.BoolVar(&v.Debug, "debug", DefaultConfig.Debug, "debug logging")
	flags.StringVar(&v.Store.Driver, "store-driver", "", "result store driver: postgres, sqlite or mysql")
	flags.StringVar(&v.Store.DSN, "store-dsn", "", "result store data source name")
	flags.StringVar(&f.confPath, "config", "", "custom config path")

	return f
}

// Load builds the configuration: defaults, then the config file, then every
// flag that was set explicitly.
func (f *Flags) Load() (*Config, error) {
	config := DefaultConfig
	config.Decoders = slices.Clone(DefaultConfig.Decoders)

	// load user defined custom config file
	err := ReadConfig(f.confPath, &config)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s, %w", f.confPath, err)
	}

	v := f.values

	// provided flags always override configuration
	f.fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "file":
			config.Files = v.Files
		case "plan":
			config.Plan = v.Plan
		case "decoder":
			config.Decoders = v.Decoders
		case "apply-opacity":
			config.ApplyOpacity = v.ApplyOpacity
		case "load-workers":
			config.LoadWorkers = v.LoadWorkers
		case "format":
			config.Format = v.Format
		case "chart":
			config.Chart = v.Chart
		case "metrics-file":
			config.MetricsFile = v.MetricsFile
		case "debug":
			config.Debug = v.Debug
		case "store-driver":
			config.Store.Driver = v.Store.Driver
		case "store-dsn":
			config.Store.DSN = v.Store.DSN
		}
	})

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// InitConfig parses args into a fresh flag set and loads the configuration.
func InitConfig(name string, args []string) (*Config, error) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f := NewFlags(flags)

	err := flags.Parse(args)
	if err != nil {
		return nil, fmt.Errorf("flag error: %w", err)
	}

	return f.Load()
}
