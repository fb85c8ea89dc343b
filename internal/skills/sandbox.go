package skills

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"openmoose/internal/logging"
)

// LocalSandbox runs commands on the host through a shell with a hard
// timeout. It stands in for a container-backed executor; the Sandbox
// interface is what the rest of the system depends on.
type LocalSandbox struct {
	Shell   string        // defaults to /bin/sh
	Timeout time.Duration // defaults to 30s
	WorkDir string
}

// NewLocalSandbox creates a sandbox with defaults.
func NewLocalSandbox() *LocalSandbox {
	return &LocalSandbox{Shell: "/bin/sh", Timeout: 30 * time.Second}
}

// Run executes command and returns its combined output. The command is
// killed when the timeout elapses; partial output is still returned in
// the error text.
func (s *LocalSandbox) Run(ctx context.Context, command string) (string, error) {
	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Dir = s.WorkDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	logging.Skills("sandbox command finished in %v (err=%v)", time.Since(start), err)

	output := strings.TrimSpace(out.String())
	if runCtx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %v", timeout)
	}
	if err != nil {
		return output, fmt.Errorf("command failed: %w (output: %s)", err, output)
	}
	return output, nil
}
