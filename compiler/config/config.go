package config

import (
	"os"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type (
	Config struct {
		Bits       int    `yaml:"bits"`
		Convention string `yaml:"convention"`
		Backend    string `yaml:"backend"`
		FatStrings bool   `yaml:"fat_strings"`
		Debug      bool   `yaml:"debug"`
		Entry      string `yaml:"entry"`
		IRFile     string `yaml:"ir_file"`
	}
)

const EnvPrefix = "LOWC_"

func Default() Config {
	return Config{
		Bits:       64,
		Convention: "sysv",
		Backend:    "asm",
		Entry:      "main",
	}
}

// Load reads defaults, then the file if name is not empty, then environment overrides.
func Load(name string) (c Config, err error) {
	c = Default()

	if name != "" {
		data, err := os.ReadFile(name)
		if err != nil {
			return c, errors.Wrap(err, "read config")
		}

		err = Parse(data, &c)
		if err != nil {
			return c, errors.Wrap(err, "config %v", name)
		}
	}

	c.FromEnv()

	return c, nil
}

func Parse(data []byte, c *Config) error {
	err := yaml.Unmarshal(data, c)
	if err != nil {
		return errors.Wrap(err, "yaml")
	}

	return nil
}

// FromEnv applies LOWC_* overrides. The environment is reread on every call.
func (c *Config) FromEnv() {
	env.Load()

	if env.Has(EnvPrefix + "BITS") {
		c.Bits = env.Int(EnvPrefix+"BITS", c.Bits)
	}

	c.Convention = env.Str(EnvPrefix+"CONVENTION", c.Convention)
	c.Backend = env.Str(EnvPrefix+"BACKEND", c.Backend)
	c.Entry = env.Str(EnvPrefix+"ENTRY", c.Entry)

	if env.Has(EnvPrefix + "FAT_STRINGS") {
		c.FatStrings = env.Bool(EnvPrefix + "FAT_STRINGS")
	}

	if env.Has(EnvPrefix + "DEBUG") {
		c.Debug = env.Bool(EnvPrefix + "DEBUG")
	}
}

func (c Config) Validate() error {
	if c.Bits != 32 && c.Bits != 64 {
		return errors.New("unsupported target bits: %d", c.Bits)
	}

	if c.Convention != "sysv" {
		return errors.New("unsupported calling convention: %q", c.Convention)
	}

	if c.Backend != "asm" {
		return errors.New("unsupported backend: %q", c.Backend)
	}

	if c.Entry == "" {
		return errors.New("empty entry function name")
	}

	return nil
}

// IRPath is where the debug IR dump goes for the given source file.
func (c Config) IRPath(src string) string {
	if c.IRFile != "" {
		return c.IRFile
	}

	return src + ".ir"
}
