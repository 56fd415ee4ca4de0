package preflight

import (
	"errors"
	"fmt"
	"strings"

	"imgsync/internal/config"
	"imgsync/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the startup directory checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Document root", cfg.Paths.DocDir),
		CheckDirectoryAccess("Image root", cfg.Paths.ImgDir),
	}
}

// Err folds failed results into a single configuration error, or nil when
// every check passed.
func Err(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return services.Wrap(
		services.ErrConfiguration,
		"preflight",
		"check directories",
		strings.Join(failures, "; "),
		errors.New("startup checks failed"),
	)
}
