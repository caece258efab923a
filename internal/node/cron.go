package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// UpdateInterval is the cron schedule of the auto-update job.
const UpdateInterval = "*/5 * * * *"

// Runner executes a command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Cron edits the user's crontab.
type Cron struct {
	Run Runner
}

// NewCron returns a Cron using ExecRunner.
func NewCron() *Cron {
	return &Cron{Run: ExecRunner}
}

// UpdateCommand is the command the auto-update job runs.
func UpdateCommand(configDir string) string {
	return filepath.Join(configDir, "bin", "coretex") + " node update --auto"
}

// ExistingJobs returns the non-empty lines of the current crontab. A user
// without a crontab has no jobs.
func (c *Cron) ExistingJobs(ctx context.Context) ([]string, error) {
	stdout, stderr, err := c.Run(ctx, "crontab", "-l")
	if err != nil {
		if strings.Contains(stderr, "no crontab for") {
			return nil, nil
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("\"crontab\" is not installed, install it to enable automatic updates: %w", err)
		}
		return nil, fmt.Errorf("failed to read crontab: %s: %w", strings.TrimSpace(stderr), err)
	}

	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// JobExists reports whether a crontab line runs command.
func (c *Cron) JobExists(ctx context.Context, command string) (bool, error) {
	lines, err := c.ExistingJobs(ctx)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if strings.Contains(line, command) {
			return true, nil
		}
	}
	return false, nil
}

// ScheduleJob installs the auto-update job unless it exists. The job's
// PATH holds the folders of the docker and git binaries, since cron runs
// with a minimal environment. Output is appended to out.txt next to
// configDir.
func (c *Cron) ScheduleJob(ctx context.Context, configDir string) error {
	command := UpdateCommand(configDir)

	lines, err := c.ExistingJobs(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if strings.Contains(line, command) {
			return nil
		}
	}

	var paths []string
	for _, bin := range []string{"git", "docker"} {
		out, _, err := c.Run(ctx, "which", bin)
		if err != nil {
			return fmt.Errorf("failed to locate %s: %w", bin, err)
		}
		paths = append(paths, filepath.Dir(strings.TrimSpace(out)))
	}

	parent := filepath.Dir(configDir)
	lines = append(lines,
		"PATH="+strings.Join(paths, ":"),
		fmt.Sprintf("%s %s >> %s 2>&1", UpdateInterval, command, filepath.Join(parent, "out.txt")),
	)

	tmp := filepath.Join(parent, "temp.cron")
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write crontab: %w", err)
	}
	defer os.Remove(tmp)

	if _, stderr, err := c.Run(ctx, "crontab", tmp); err != nil {
		return fmt.Errorf("failed to install crontab: %s: %w", strings.TrimSpace(stderr), err)
	}
	return nil
}
