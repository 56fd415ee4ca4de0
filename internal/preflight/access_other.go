//go:build !unix

package preflight

import (
	"errors"
	"io"
	"os"
)

// Platforms without access(2) get a best-effort probe: list the directory and
// create then remove a scratch file.
func checkAccess(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	_, err = dir.Readdirnames(1)
	_ = dir.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	probe, err := os.CreateTemp(path, ".imgsync-access-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
