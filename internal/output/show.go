package output

import (
	"fmt"
	"os/exec"
	"runtime"
)

// viewerCommand returns the platform command that opens a file in the default viewer.
func viewerCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{path}, nil
	case "darwin":
		return "open", []string{path}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}, nil
	default:
		return "", nil, fmt.Errorf("no image viewer known for %s", goos)
	}
}

// Show opens path in the system image viewer without waiting for it.
func Show(path string) error {
	name, args, err := viewerCommand(runtime.GOOS, path)
	if err != nil {
		return err
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	return cmd.Process.Release()
}
