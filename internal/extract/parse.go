package extract

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/svcdeps/svcdeps/internal/fact"
)

// SettingsFiles are the files searched for the project name, in order.
var SettingsFiles = []string{"settings.gradle", "settings.gradle.kts"}

var rootProjectRe = regexp.MustCompile(`rootProject\.name\s*=\s*['"]([^'"]+)['"]`)

// ProjectName reads the root project name from the settings file in dir.
// Returns ErrConfigurationMissing if no settings file declares one.
func ProjectName(dir string) (string, error) {
	var lastErr error
	for _, name := range SettingsFiles {
		path := filepath.Join(dir, name)
		project, err := projectNameFromFile(path)
		if err == nil {
			return project, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %w", ErrConfigurationMissing, lastErr)
}

func projectNameFromFile(path string) (string, error) {
	// #nosec G304 - path is built from the configured project directory
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := rootProjectRe.FindStringSubmatch(strings.TrimSpace(scanner.Text())); m != nil {
			return m[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return "", fmt.Errorf("no rootProject.name in %s", filepath.Base(path))
}

// factPattern matches "<namespace>:<name>:<version>" with an optional
// Gradle conflict-resolution arrow ("1.0 -> 1.2"). The version may be a
// rich constraint in braces ("{strictly 1.0}").
func factPattern(namespace string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\w.])` + regexp.QuoteMeta(namespace) +
		`:([^:\s]+):(\{[^}]*\}|[^:\s]+)(?:\s+->\s+([^\s(]+))?`)
}

// constraintVersion returns the version named by a rich constraint such as
// "{strictly 1.0}" or "{require 1.0; prefer 1.2}": the last word inside the
// braces. Plain versions are returned unchanged.
func constraintVersion(v string) string {
	if !strings.HasPrefix(v, "{") {
		return v
	}
	fields := strings.Fields(strings.Trim(v, "{}"))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[len(fields)-1], ";")
}

// ParseFactLines turns a dependency listing into facts for service.
//
// Only lines mentioning "<namespace>:<name>:<version>" are used; every other
// line is ignored. When Gradle resolved a conflict ("1.0 -> 1.2") the
// resolved version is recorded; a rich constraint ("{strictly 1.0}") records
// the version it names. Repeated facts are dropped, keeping the
// first occurrence.
func ParseFactLines(service, namespace string, lines []string) []fact.Fact {
	re := factPattern(namespace)
	needle := namespace + ":"

	var facts []fact.Fact
	for _, line := range lines {
		if !strings.Contains(line, needle) {
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		version := constraintVersion(m[2])
		if m[3] != "" {
			version = m[3]
		}
		facts = append(facts, fact.New(service, m[1], version))
	}
	return fact.Dedupe(facts)
}

// SplitLines splits command output into non-empty, right-trimmed lines.
func SplitLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	raw := strings.Split(string(output), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, " \t\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
