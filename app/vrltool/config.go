// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrltool

import (
	"strings"
	"time"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/support/network"
	"github.com/danjacques/govita/vrlfile"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config is the vrltool configuration shared by all subcommands.
type Config struct {
	// LogLevel is the minimum level to log at.
	LogLevel string
	// MetricsAddr, if not empty, is the address to serve Prometheus metrics on.
	MetricsAddr string

	// MaxFrameLength is the maximum length of frames built by repack and send.
	MaxFrameLength int
	// OmitCRC causes built frames to carry no CRC.
	OmitCRC bool
	// Strict enables strict frame validation.
	Strict bool

	// Compression is the compression of written files.
	Compression vrlfile.Compression
	// CompressionLevel is the compression level, if applicable.
	CompressionLevel int

	// Interface is the network interface to join multicast groups on.
	Interface string
	// BufferSize, if >0, is the socket buffer size.
	BufferSize int
	// Rate, if >0, is the maximum number of frames sent per second.
	Rate float64
	// Duration, if >0, limits how long record runs.
	Duration time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		MaxFrameLength:   network.MaxUDPSize &^ 3,
		Compression:      vrlfile.CompressionNone,
		CompressionLevel: -1,
	}
}

// fileConfig is the TOML representation of Config.
type fileConfig struct {
	LogLevel         string  `toml:"log_level"`
	MetricsAddr      string  `toml:"metrics_addr"`
	MaxFrameLength   int     `toml:"max_frame_length"`
	OmitCRC          bool    `toml:"omit_crc"`
	Strict           bool    `toml:"strict"`
	Compression      string  `toml:"compression"`
	CompressionLevel int     `toml:"compression_level"`
	Interface        string  `toml:"interface"`
	BufferSize       int     `toml:"buffer_size"`
	Rate             float64 `toml:"rate"`
	Duration         string  `toml:"duration"`
}

// LoadFile overlays the values defined in the TOML file at path onto cfg.
func (cfg *Config) LoadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return errors.Wrapf(err, "loading config %q", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown config key %q in %q", undecoded[0].String(), path)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("max_frame_length") {
		cfg.MaxFrameLength = raw.MaxFrameLength
	}
	if meta.IsDefined("omit_crc") {
		cfg.OmitCRC = raw.OmitCRC
	}
	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}
	if meta.IsDefined("compression") {
		if cfg.Compression, err = vrlfile.ParseCompression(strings.TrimSpace(raw.Compression)); err != nil {
			return errors.Wrap(err, "parse compression")
		}
	}
	if meta.IsDefined("compression_level") {
		cfg.CompressionLevel = raw.CompressionLevel
	}
	if meta.IsDefined("interface") {
		cfg.Interface = strings.TrimSpace(raw.Interface)
	}
	if meta.IsDefined("buffer_size") {
		cfg.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("rate") {
		cfg.Rate = raw.Rate
	}
	if meta.IsDefined("duration") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Duration))
		if err != nil {
			return errors.Wrap(err, "parse duration")
		}
		cfg.Duration = d
	}
	return nil
}

// Validate checks that cfg's values are usable.
func (cfg *Config) Validate() error {
	switch {
	case cfg.MaxFrameLength < vrl.MinFrameLength || cfg.MaxFrameLength > vrl.MaxFrameLength:
		return errors.Errorf("max frame length %d is outside [%d, %d]",
			cfg.MaxFrameLength, vrl.MinFrameLength, vrl.MaxFrameLength)
	case cfg.MaxFrameLength%4 != 0:
		return errors.Errorf("max frame length %d is not a multiple of 4", cfg.MaxFrameLength)
	case cfg.Rate < 0:
		return errors.Errorf("rate %v is negative", cfg.Rate)
	case cfg.Duration < 0:
		return errors.Errorf("duration %s is negative", cfg.Duration)
	}
	return nil
}

// flagSet binds cfg's fields to flags. A flag that is set on the command line
// overrides any value loaded from a config file.
type flagSet struct {
	*pflag.FlagSet

	cfg        *Config
	configPath string

	compression vrlfile.CompressionFlag
}

func newFlagSet(name string, cfg *Config) *flagSet {
	fs := flagSet{
		FlagSet:     pflag.NewFlagSet(name, pflag.ContinueOnError),
		cfg:         cfg,
		compression: vrlfile.CompressionFlag(cfg.Compression),
	}

	fs.StringVar(&fs.configPath, "config", "", "Path to a TOML config file.")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error).")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr,
		"If set, serve Prometheus metrics on this address.")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Validate the packet structure of every frame.")
	return &fs
}

func (fs *flagSet) addFrameFlags() {
	fs.IntVar(&fs.cfg.MaxFrameLength, "max-frame-length", fs.cfg.MaxFrameLength,
		"Maximum length of a built frame, in octets.")
	fs.BoolVar(&fs.cfg.OmitCRC, "omit-crc", fs.cfg.OmitCRC, "Build frames without a CRC.")
}

func (fs *flagSet) addFileFlags() {
	fs.Var(&fs.compression, "compression",
		"Compression of written files ("+vrlfile.CompressionFlagValues()+").")
	fs.IntVar(&fs.cfg.CompressionLevel, "compression-level", fs.cfg.CompressionLevel,
		"Compression level, if applicable. <=0 uses the default.")
}

func (fs *flagSet) addNetworkFlags() {
	fs.StringVar(&fs.cfg.Interface, "interface", fs.cfg.Interface,
		"Network interface to join multicast groups on.")
	fs.IntVar(&fs.cfg.BufferSize, "buffer-size", fs.cfg.BufferSize, "Socket buffer size, if >0.")
}

// parse parses args. If a config file is named, it is loaded first and the
// explicitly-set flags are then reapplied over it.
func (fs *flagSet) parse(args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.configPath != "" {
		set := make(map[string]string)
		fs.Visit(func(f *pflag.Flag) { set[f.Name] = f.Value.String() })

		if err := fs.cfg.LoadFile(fs.configPath); err != nil {
			return err
		}
		for name, v := range set {
			if err := fs.Set(name, v); err != nil {
				return err
			}
		}
	}

	if fs.Changed("compression") {
		fs.cfg.Compression = fs.compression.Value()
	}
	return fs.cfg.Validate()
}
