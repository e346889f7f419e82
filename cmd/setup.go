package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/snapsong/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes config.toml from the embedded template when it does not exist yet and creates the
// inbox and both output directories.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		return fmt.Errorf("%w: config path", shared.ErrMissingArgument)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := shared.EnsureDirs(dir); err != nil {
				return err
			}
		}
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", path)
		r.writePlain("✓ Wrote %s, fill in credentials and run `snapsong auth`\n", path)
	} else {
		r.logger.Info("config file exists, keeping it", "path", path)
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	config.ApplyEnv(os.Getenv)
	r.config = config

	p := config.Pipeline
	dirs := []string{p.Inbox, p.FoundDir, p.NotFoundDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := shared.EnsureDirs(dir); err != nil {
			return err
		}
		r.writePlain("✓ %s\n", dir)
	}

	if err := config.Validate(); err != nil {
		r.logger.Warn("config needs attention", "error", err)
	}
	return nil
}
