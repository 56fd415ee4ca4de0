package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the document tree, asset root, and local state locations.
type Paths struct {
	DocDir   string `toml:"doc_dir"`
	ImgDir   string `toml:"img_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Documents controls which files are scanned and which references count.
type Documents struct {
	Extension          string `toml:"extension"`
	HTMLImages         bool   `toml:"html_images"`
	RespectFrontMatter bool   `toml:"respect_front_matter"`
}

// Download contains HTTP fetch settings for remote assets.
type Download struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	VerifyTLS         bool    `toml:"verify_tls"`
	UserAgent         string  `toml:"user_agent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Transcode contains settings for re-encoding fetched images with ffmpeg.
type Transcode struct {
	Enabled        bool   `toml:"enabled"`
	FFmpegPath     string `toml:"ffmpeg_path"`
	Codec          string `toml:"codec"`
	ForceAccept    bool   `toml:"force_accept"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	WorkDir        string `toml:"work_dir"`
	Bootstrap      bool   `toml:"bootstrap"`
	BootstrapURL   string `toml:"bootstrap_url"`
	BootstrapEntry string `toml:"bootstrap_entry"`
}

// Pipeline contains scheduling knobs for the localization driver.
type Pipeline struct {
	// Workers bounds how many references of one document are fetched at once.
	// Documents are always processed one at a time.
	Workers        int `toml:"workers"`
	FailedURLCache int `toml:"failed_url_cache"`
}

// History contains configuration for the run ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for imgsync.
//
// Configuration sections by subsystem:
//   - Paths: document root, asset root, state and log directories
//   - Documents: document extension and reference sources
//   - Download: HTTP client behaviour for remote assets
//   - Transcode: ffmpeg re-encoding and codec acquisition
//   - Pipeline: reference concurrency and failure memo size
//   - History: sqlite run ledger
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Documents Documents `toml:"documents"`
	Download  Download  `toml:"download"`
	Transcode Transcode `toml:"transcode"`
	Pipeline  Pipeline  `toml:"pipeline"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imgsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is loaded
// first so IMGSYNC_* variables can override file values.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/imgsync/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("imgsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directories imgsync writes to. The
// document and asset roots are never created here: their absence is a startup
// error reported by preflight.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Transcode.WorkDir}
	if c.Paths.LogDir != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the lock file guarding runs against the configured asset root.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "locks", lockName(c.Paths.ImgDir))
}

// SidecarFFmpegPath returns the location a bootstrapped ffmpeg is installed to.
func (c *Config) SidecarFFmpegPath() string {
	return filepath.Join(c.Paths.StateDir, "bin", ffmpegExecutable())
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
