package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DocDir == "" {
		return errors.New("paths.doc_dir must be set")
	}
	if c.Paths.ImgDir == "" {
		return errors.New("paths.img_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.TimeoutSeconds < 0 {
		return errors.New("download.timeout_seconds must not be negative")
	}
	if c.Download.RequestsPerSecond < 0 {
		return errors.New("download.requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.TimeoutSeconds <= 0 {
		return errors.New("transcode.timeout_seconds must be positive")
	}
	if strings.ContainsAny(c.Transcode.Codec, " \t") {
		return fmt.Errorf("transcode.codec %q must be a single encoder name", c.Transcode.Codec)
	}
	if c.Transcode.BootstrapEntry != "" {
		for _, part := range strings.Split(filepath.ToSlash(c.Transcode.BootstrapEntry), "/") {
			if part == ".." {
				return fmt.Errorf("transcode.bootstrap_entry %q must not escape the archive", c.Transcode.BootstrapEntry)
			}
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be positive")
	}
	if c.Pipeline.FailedURLCache <= 0 {
		return errors.New("pipeline.failed_url_cache must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
