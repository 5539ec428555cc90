//go:build linux

package procgroup

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKill_TerminatesWholeGroup(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 10 & sleep 10")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid, "process should lead its own group")

	// Give the shell a moment to fork the background sleep.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, Kill(cmd))
	require.Error(t, cmd.Wait())

	time.Sleep(50 * time.Millisecond)
	err = syscall.Kill(-pgid, syscall.Signal(0))
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		t.Fatalf("process group %d still exists after kill", pgid)
	}
	assert.ErrorIs(t, err, syscall.ESRCH)
}

func TestSetWithCancel_KillsGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sh", "-c", "sleep 10 & sleep 10")
	SetWithCancel(cmd)
	require.NoError(t, cmd.Start())
	pgid := cmd.Process.Pid

	time.Sleep(100 * time.Millisecond)
	cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not exit after cancel")
	}

	time.Sleep(50 * time.Millisecond)
	assert.ErrorIs(t, syscall.Kill(-pgid, syscall.Signal(0)), syscall.ESRCH)
}

func TestKill_NilAndExited(t *testing.T) {
	require.NoError(t, Kill(nil))
	require.NoError(t, Kill(&exec.Cmd{}))

	cmd := exec.Command("true")
	Set(cmd)
	require.NoError(t, cmd.Run())
	require.NoError(t, Kill(cmd))
}
