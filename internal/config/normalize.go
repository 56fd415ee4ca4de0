package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables that override file values.
const (
	EnvDocDir   = "IMGSYNC_DOC_DIR"
	EnvImgDir   = "IMGSYNC_IMG_DIR"
	EnvFFmpeg   = "IMGSYNC_FFMPEG"
	EnvLogLevel = "IMGSYNC_LOG_LEVEL"
)

func (c *Config) applyEnv() {
	if value, ok := lookupNonEmpty(EnvDocDir); ok {
		c.Paths.DocDir = value
	}
	if value, ok := lookupNonEmpty(EnvImgDir); ok {
		c.Paths.ImgDir = value
	}
	if value, ok := lookupNonEmpty(EnvFFmpeg); ok {
		c.Transcode.FFmpegPath = value
	}
	if value, ok := lookupNonEmpty(EnvLogLevel); ok {
		c.Logging.Level = value
	}
}

func lookupNonEmpty(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDocuments()
	c.normalizeDownload()
	if err := c.normalizeTranscode(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DocDir, err = expandPath(strings.TrimSpace(c.Paths.DocDir)); err != nil {
		return fmt.Errorf("paths.doc_dir: %w", err)
	}
	if c.Paths.ImgDir, err = expandPath(strings.TrimSpace(c.Paths.ImgDir)); err != nil {
		return fmt.Errorf("paths.img_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDocuments() {
	ext := strings.TrimSpace(c.Documents.Extension)
	if ext == "" {
		ext = defaultDocumentExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Documents.Extension = strings.ToLower(ext)
}

func (c *Config) normalizeDownload() {
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	if c.Download.Burst <= 0 {
		c.Download.Burst = defaultDownloadBurst
	}
}

func (c *Config) normalizeTranscode() error {
	c.Transcode.Codec = strings.TrimSpace(c.Transcode.Codec)
	if c.Transcode.Codec == "" {
		c.Transcode.Codec = defaultCodec
	}
	var err error
	if ffmpeg := strings.TrimSpace(c.Transcode.FFmpegPath); ffmpeg != "" {
		// Bare command names are resolved through PATH later.
		if strings.ContainsAny(ffmpeg, `/\`) || strings.HasPrefix(ffmpeg, "~") {
			if ffmpeg, err = expandPath(ffmpeg); err != nil {
				return fmt.Errorf("transcode.ffmpeg_path: %w", err)
			}
		}
		c.Transcode.FFmpegPath = ffmpeg
	} else {
		c.Transcode.FFmpegPath = ""
	}
	if strings.TrimSpace(c.Transcode.WorkDir) == "" {
		c.Transcode.WorkDir = defaultWorkDir(c.Paths.StateDir)
	}
	if c.Transcode.WorkDir, err = expandPath(c.Transcode.WorkDir); err != nil {
		return fmt.Errorf("transcode.work_dir: %w", err)
	}
	c.Transcode.BootstrapURL = strings.TrimSpace(c.Transcode.BootstrapURL)
	c.Transcode.BootstrapEntry = strings.Trim(strings.TrimSpace(c.Transcode.BootstrapEntry), "/")
	if c.Transcode.BootstrapURL != "" && c.Transcode.BootstrapEntry == "" {
		c.Transcode.BootstrapEntry = ffmpegExecutable()
	}
	return nil
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.StateDir, "history.db")
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
