package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	defaultDocDir                = "src"
	defaultImgDir                = "src/.vuepress/public"
	defaultStateDir              = "~/.local/share/imgsync"
	defaultDocumentExtension     = ".md"
	defaultDownloadTimeout       = 300
	defaultDownloadBurst         = 1
	defaultUserAgent             = "imgsync/dev"
	defaultCodec                 = "libaom-av1"
	defaultTranscodeTimeout      = 120
	defaultWorkers               = 1
	defaultFailedURLCache        = 512
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultWindowsBootstrapURL   = "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win64-gpl.zip"
	defaultWindowsBootstrapEntry = "ffmpeg-master-latest-win64-gpl/bin/ffmpeg.exe"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DocDir:   defaultDocDir,
			ImgDir:   defaultImgDir,
			StateDir: defaultStateDir,
		},
		Documents: Documents{
			Extension:          defaultDocumentExtension,
			RespectFrontMatter: true,
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			VerifyTLS:      false,
			UserAgent:      defaultUserAgent,
			Burst:          defaultDownloadBurst,
		},
		Transcode: Transcode{
			Enabled:        true,
			Codec:          defaultCodec,
			TimeoutSeconds: defaultTranscodeTimeout,
			Bootstrap:      true,
			BootstrapURL:   defaultBootstrapURL(),
			BootstrapEntry: defaultBootstrapEntry(),
		},
		Pipeline: Pipeline{
			Workers:        defaultWorkers,
			FailedURLCache: defaultFailedURLCache,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// Release archives are only published as zip files for Windows; other
// platforms install ffmpeg through their package manager unless a URL is
// configured explicitly.
func defaultBootstrapURL() string {
	if runtime.GOOS == "windows" {
		return defaultWindowsBootstrapURL
	}
	return ""
}

func defaultBootstrapEntry() string {
	if runtime.GOOS == "windows" {
		return defaultWindowsBootstrapEntry
	}
	return ""
}

func defaultWorkDir(stateDir string) string {
	if strings.TrimSpace(stateDir) == "" {
		return filepath.Join(os.TempDir(), "imgsync")
	}
	return filepath.Join(stateDir, "tmp")
}

func ffmpegExecutable() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

func lockName(imgDir string) string {
	sum := sha256.Sum256([]byte(imgDir))
	return hex.EncodeToString(sum[:])[:16] + ".lock"
}
