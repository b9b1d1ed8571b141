package config

import (
	"bytes"
	"context"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"

	"go.viam.com/armsim/logging"
)

// Read reads a config from the given file, substituting environment variables first.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from. The contents are JSON5, so comments
// and trailing commas are allowed.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	unprocessedConfig := Config{
		ConfigFilePath: originalPath,
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read Config")
	}
	if err := json5.Unmarshal(data, &unprocessedConfig); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, err := processConfig(&unprocessedConfig, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to process Config")
	}
	return cfg, nil
}

// processConfig resolves file paths relative to the config file and validates the result.
func processConfig(unprocessedConfig *Config, logger logging.Logger) (*Config, error) {
	cfg := *unprocessedConfig
	dir := ""
	if cfg.ConfigFilePath != "" {
		dir = filepath.Dir(cfg.ConfigFilePath)
	}
	cfg.Model.Path = resolvePath(dir, cfg.Model.Path)
	cfg.Motion.Bag = resolvePath(dir, cfg.Motion.Bag)
	cfg.LogFile = resolvePath(dir, cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model.Path == "" {
		logger.Debugw("no model path configured, using the built-in model", "config", cfg.ConfigFilePath)
	}
	return &cfg, nil
}

func resolvePath(dir, path string) string {
	if path == "" || dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
