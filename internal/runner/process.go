package runner

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// newCommand creates an exec.Cmd with process group isolation.
// The Setpgid: true flag ensures the subprocess is in its own process group,
// allowing for clean termination of the entire subprocess tree.
// No context is attached: agent processes outlive the request that started
// them, and stopping one goes through the process group signals below.
func newCommand(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Create new process group for signal propagation
	}
	return cmd
}

// signalProcessGroup sends a signal to the entire process group (negative
// pid), so agent subprocesses receive it too, not just the immediate child.
func signalProcessGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		return fmt.Errorf("failed to signal process group %d: %w", pid, err)
	}
	return nil
}

// terminateProcessGroup asks the process group to stop with SIGTERM and
// escalates to SIGKILL after the grace period. It returns immediately; the
// caller observes the actual exit through its own wait.
func terminateProcessGroup(pid int, grace time.Duration) {
	if signalProcessGroup(pid, syscall.SIGTERM) != nil {
		// Group already gone, or never existed.
		return
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		<-timer.C
		signalProcessGroup(pid, syscall.SIGKILL)
	}()
}

// processAlive probes a pid with signal 0. EPERM still means the process
// exists, it just belongs to another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
