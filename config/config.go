// Package config loads the YAML configuration of a flatmapper deployment.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/logger"
	"github.com/raunlo/pgx-flatmapper/mapper"
	"github.com/raunlo/pgx-flatmapper/pool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database pool.DatabaseConfiguration `yaml:"database"`
	Mapper   MapperConfig               `yaml:"mapper"`
	Log      logger.Config              `yaml:"log"`
}

type MapperConfig struct {
	// ContinueOnError skips rows that fail to map instead of failing the query.
	ContinueOnError bool `yaml:"continueOnError"`
}

// Options turns the mapper section into mapping options logging to l.
func (c MapperConfig) Options(l *zap.Logger) []mapper.Option {
	opts := []mapper.Option{mapper.WithLogger(l)}
	if c.ContinueOnError {
		opts = append(opts, mapper.WithContinueOnError(nil))
	}
	return opts
}

// Load reads the file at path. ${VAR} and ${VAR:-default} are replaced with
// environment values before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	return &cfg, nil
}

func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":-")
		value, ok := os.LookupEnv(name)
		if (!ok || value == "") && hasFallback {
			value = fallback
		}
		b.WriteString(content[:start])
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
