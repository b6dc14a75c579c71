package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandResult carries the separated output streams of a finished process.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

const commandTimeout = 2 * time.Hour

// RunCommand executes name with args (no shell) and returns its streams.
// A non-zero exit is reported both in ExitCode and as an error.
func RunCommand(ctx context.Context, name string, args ...string) (CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	Logf("run: %s", ShellJoin(name, args...))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		if Verbose && stderr.Len() > 0 {
			Logf("stderr (error):\n%s", strings.TrimRight(result.Stderr, "\n"))
		}
		return result, fmt.Errorf("command %s failed: %w", name, err)
	}
	if Verbose && stdout.Len() > 0 {
		Logf("output:\n%s", strings.TrimRight(result.Stdout, "\n"))
	}
	return result, nil
}
