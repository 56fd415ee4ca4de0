package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"imgsync/internal/config"
	"imgsync/internal/logging"
)

type commandContext struct {
	configFlag *string
	docDirFlag *string
	imgDirFlag *string
	logLevel   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, docDirFlag, imgDirFlag, logLevel *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		docDirFlag: docDirFlag,
		imgDirFlag: imgDirFlag,
		logLevel:   logLevel,
	}
}

// ensureConfig loads the configuration once and applies the directory and
// log level flags on top of it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := c.applyOverrides(cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) error {
	if dir := flagValue(c.docDirFlag); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return err
		}
		cfg.Paths.DocDir = expanded
	}
	if dir := flagValue(c.imgDirFlag); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return err
		}
		cfg.Paths.ImgDir = expanded
	}
	if level := flagValue(c.logLevel); level != "" {
		cfg.Logging.Level = level
	}
	return cfg.Validate()
}

// ensureLogger builds the logger for the loaded configuration once.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func flagValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
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
