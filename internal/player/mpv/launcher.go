package mpv

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// Launch starts an mpv process configured for display duty: idle so it
// survives between clips, fullscreen, no OSD chrome, IPC armed.
func Launch(socketPath string, fullscreen bool) (*exec.Cmd, error) {
	CleanupSocket(socketPath)

	args := []string{
		"--idle=yes",
		"--input-ipc-server=" + socketPath,
		"--no-osc",
		"--no-input-default-bindings",
		"--keep-open=yes",
	}
	if fullscreen {
		args = append(args, "--fullscreen")
	}

	cmd := exec.Command("mpv", args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch mpv: %w", err)
	}
	log.Info().Int("pid", cmd.Process.Pid).Str("socket", socketPath).Msg("mpv launched")
	return cmd, nil
}
