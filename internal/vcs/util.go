package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ===================
// Command Execution Utilities
// ===================

// ExecResult holds the captured streams of a finished command.
type ExecResult struct {
	Stdout []byte
	Stderr []byte
}

// Combined returns stdout followed by stderr, trimmed.
func (r ExecResult) Combined() string {
	out := strings.TrimSpace(string(r.Stdout))
	errOut := strings.TrimSpace(string(r.Stderr))
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// ExecContext executes a VCS command with timeout and context support.
//
// The result is returned even when the command fails so callers can
// classify the failure from its output. A command killed because the
// timeout or ctx deadline expired returns an error wrapping ErrTimeout.
//
// Example:
//
//	res, err := ExecContext(ctx, 30*time.Second, repoRoot, nil, "git", "status", "--porcelain")
func ExecContext(ctx context.Context, timeout time.Duration, workDir string, env []string, name string, args ...string) (ExecResult, error) {
	// Create context with timeout if specified
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ErrTimeout)
		}
		return res, err
	}

	return res, nil
}

// ===================
// Output Parsing Utilities
// ===================

// ParseLines splits command output into non-empty lines.
// This is a common pattern for parsing VCS command output.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}

// ===================
// Error Utilities
// ===================

// GetExitCode returns the exit code from an error, 0 for nil, or -1 if the
// error is not an exit error.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
