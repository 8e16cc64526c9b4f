package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidscribe/internal/config"
	"vidscribe/internal/logging"
)

type commandContext struct {
	configFlag string
	logLevel   string
	logFormat  string
	run        runFlags

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureConfig loads configuration once, layering flag overrides that were
// explicitly set on cmd.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		overrides := c.overrides(cmd)
		cfg, path, exists, err := config.LoadWithOverrides(strings.TrimSpace(c.configFlag), overrides)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		o.LogLevel = &c.logLevel
	}
	if changed("log-format") {
		o.LogFormat = &c.logFormat
	}
	c.run.apply(&o, changed)
	return o
}

// logger builds the process logger for cfg with console output on the
// command's stderr. The closer flushes the log file.
func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := logging.OptionsFromConfig(cfg)
	opts.Console = cmd.ErrOrStderr()
	logger, closer, err := logging.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
