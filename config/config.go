// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package config loads the configuration
// of a relation-building session from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/SnellerInc/relflow/plan"
	"github.com/SnellerInc/relflow/rowtx"
	"github.com/SnellerInc/relflow/table"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/yaml"
)

// Config is the configuration of a Session.
type Config struct {
	Log       Log       `json:"log"`
	Generator Generator `json:"generator"`
	Plan      Plan      `json:"plan"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn, or error.
	Level string `json:"level"`
	// Format is logfmt or json.
	Format string `json:"format"`
}

// Generator configures the row-transformer generator.
type Generator struct {
	MaxArity int `json:"max_arity"`
}

// Plan configures the encoding of plans.
type Plan struct {
	// Compression is none, zstd, or s2.
	Compression string `json:"compression"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log:       Log{Level: "info", Format: "logfmt"},
		Generator: Generator{MaxArity: rowtx.DefaultMaxArity},
		Plan:      Plan{Compression: string(plan.Zstd)},
	}
}

// Parse parses a YAML configuration.
// Fields that are not set keep their
// default values; unknown fields are an error.
func Parse(buf []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(buf, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

func (c *Config) levelOption() (level.Option, error) {
	switch c.Log.Level {
	case "debug":
		return level.AllowDebug(), nil
	case "info", "":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, fmt.Errorf("config: unknown log level %q", c.Log.Level)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.levelOption(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "logfmt", "json", "":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.Log.Format))
	}
	if c.Generator.MaxArity < 0 {
		errs = append(errs, fmt.Errorf("config: negative generator.max_arity %d", c.Generator.MaxArity))
	}
	if _, err := plan.ParseCompression(c.Plan.Compression); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	return errors.Join(errs...)
}

// Logger returns a logger writing to w
// in the configured format and level.
func (c *Config) Logger(w io.Writer) log.Logger {
	var l log.Logger
	if c.Log.Format == "json" {
		l = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		l = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	opt, err := c.levelOption()
	if err != nil {
		opt = level.AllowInfo()
	}
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(l, opt)
}

// Options returns the session options
// described by c. Logs are written to w;
// generator metrics are registered with reg
// if it is not nil.
func (c *Config) Options(w io.Writer, reg prometheus.Registerer) []table.Option {
	logger := c.Logger(w)
	comp, err := plan.ParseCompression(c.Plan.Compression)
	if err != nil {
		comp = plan.Zstd
	}
	gen := rowtx.New(
		rowtx.WithMaxArity(c.Generator.MaxArity),
		rowtx.WithLogger(logger),
		rowtx.WithRegisterer(reg),
	)
	return []table.Option{
		table.WithLogger(logger),
		table.WithGenerator(gen),
		table.WithCompression(comp),
	}
}
