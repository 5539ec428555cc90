// Package procgroup starts child processes in their own process group so a
// whole tree (yt-dlp and any helpers it forks) can be killed at once.
package procgroup

import "os/exec"

// Set configures cmd to start in a new process group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// SetWithCancel is Set plus a Cancel hook that kills the group when the
// command's context ends. cmd must come from exec.CommandContext.
func SetWithCancel(cmd *exec.Cmd) {
	set(cmd)
	cmd.Cancel = func() error {
		return Kill(cmd)
	}
}
