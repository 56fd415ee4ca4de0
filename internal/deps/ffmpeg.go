package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// FFmpegSource records where a resolved ffmpeg binary came from.
type FFmpegSource string

const (
	SourceConfigured FFmpegSource = "configured"
	SourceSidecar    FFmpegSource = "sidecar"
	SourcePath       FFmpegSource = "path"
)

// FFmpegStatus reports the ffmpeg binary imgsync will execute.
type FFmpegStatus struct {
	Status
	Source FFmpegSource
}

// ResolveFFmpeg mirrors the lookup order used at run time: an explicitly
// configured binary wins, then an ffmpeg sitting next to the imgsync
// executable, then one installed into any of sidecarDirs by the codec
// bootstrap, and finally "ffmpeg" from PATH.
func ResolveFFmpeg(configured string, sidecarDirs ...string) FFmpegStatus {
	result := FFmpegStatus{Status: Status{
		Name:        "FFmpeg",
		Description: "Re-encodes downloaded images to AVIF",
		Optional:    true,
	}}

	if configured = strings.TrimSpace(configured); configured != "" {
		result.Source = SourceConfigured
		resolved, err := exec.LookPath(configured)
		if err != nil {
			result.Command = configured
			result.Detail = fmt.Sprintf("configured binary %q not found", configured)
			return result
		}
		result.Command = resolved
		result.Available = true
		return result
	}

	candidates := make([]string, 0, len(sidecarDirs)+1)
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Dir(exe))
	}
	candidates = append(candidates, sidecarDirs...)
	for _, dir := range candidates {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		candidate := filepath.Join(dir, ExecutableName("ffmpeg"))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Source = SourceSidecar
			result.Available = true
			return result
		}
	}

	result.Source = SourcePath
	if ffmpegPath, err := exec.LookPath("ffmpeg"); err == nil {
		result.Command = ffmpegPath
		result.Available = true
		return result
	}
	result.Command = "ffmpeg"
	result.Detail = `binary "ffmpeg" not found`
	return result
}

// ExecutableName appends the platform executable suffix to name.
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
