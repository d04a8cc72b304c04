package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner produces the raw dependency listing for the project in dir.
type Runner interface {
	Dependencies(ctx context.Context, dir string) ([]string, error)
}

// GradleRunner runs "gradle dependencies --configuration <Configuration>".
type GradleRunner struct {
	// Command is the Gradle executable, e.g. "gradle" or "./gradlew".
	Command string

	// Configuration is the dependency configuration to list.
	Configuration string

	// Timeout bounds a single invocation (0 = no timeout).
	Timeout time.Duration
}

// DefaultGradleRunner returns a runner for the compile classpath.
func DefaultGradleRunner() *GradleRunner {
	return &GradleRunner{
		Command:       "gradle",
		Configuration: "compileClasspath",
		Timeout:       5 * time.Minute,
	}
}

// Args returns the arguments passed to the Gradle executable.
func (g *GradleRunner) Args() []string {
	return []string{"dependencies", "--configuration", g.Configuration}
}

// Dependencies implements Runner.
func (g *GradleRunner) Dependencies(ctx context.Context, dir string) ([]string, error) {
	output, err := execContext(ctx, g.Timeout, dir, g.Command, g.Args()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrBuildToolFailed,
			g.Command, strings.Join(g.Args(), " "), err)
	}
	return SplitLines(output), nil
}

// execContext runs name in workDir and returns stdout. stderr is folded
// into the error when the command fails.
func execContext(ctx context.Context, timeout time.Duration, workDir string, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// StaticRunner returns a fixed listing. Useful for replaying saved output.
type StaticRunner []string

// Dependencies implements Runner.
func (s StaticRunner) Dependencies(ctx context.Context, dir string) ([]string, error) {
	return []string(s), nil
}
