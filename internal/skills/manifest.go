package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"openmoose/internal/logging"
	"openmoose/internal/router"
)

// Manifest declares a user-defined skill in a YAML file under the
// skills directory. The command runs in the sandbox with extracted
// arguments exported as MOOSE_ARG_<NAME> environment assignments
// prepended to the command line.
type Manifest struct {
	Name                  string   `yaml:"name"`
	Description           string   `yaml:"description"`
	Examples              []string `yaml:"examples"`
	Command               string   `yaml:"command"`
	RequiresElevatedTrust bool     `yaml:"requires_elevated_trust"`
}

// Validate checks manifest invariants.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest is missing a name")
	}
	if len(m.Examples) == 0 {
		return fmt.Errorf("skill %s has no example utterances", m.Name)
	}
	if m.Command == "" {
		return fmt.Errorf("skill %s has no command", m.Name)
	}
	return nil
}

// LoadManifests reads every *.yaml file in dir and converts it to a
// skill route. A missing directory is not an error; a malformed file
// is skipped with a warning so one bad manifest can't block startup.
func LoadManifests(dir string) ([]*router.SkillRoute, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	var routes []*router.SkillRoute
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Skills("skipping unreadable manifest %s: %v", path, err)
			continue
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			logging.Skills("skipping malformed manifest %s: %v", path, err)
			continue
		}
		if err := m.Validate(); err != nil {
			logging.Skills("skipping invalid manifest %s: %v", path, err)
			continue
		}

		routes = append(routes, manifestRoute(m))
		logging.Skills("loaded skill manifest: %s (%d examples)", m.Name, len(m.Examples))
	}
	return routes, nil
}

// manifestRoute converts a manifest to a sandbox-backed route.
func manifestRoute(m Manifest) *router.SkillRoute {
	return &router.SkillRoute{
		Name:                  m.Name,
		Description:           m.Description,
		Examples:              m.Examples,
		RequiresElevatedTrust: m.RequiresElevatedTrust,
		ExtractArgs: func(message string) map[string]string {
			return map[string]string{"message": message}
		},
		Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
			sc := asSkillContext(execCtx)
			if sc.Sandbox == nil {
				return "", fmt.Errorf("sandbox is not available")
			}
			return sc.Sandbox.Run(ctx, buildManifestCommand(m.Command, args))
		},
	}
}

// buildManifestCommand prepends argument environment assignments so the
// command can reference $MOOSE_ARG_MESSAGE etc.
func buildManifestCommand(command string, args map[string]string) string {
	var b strings.Builder
	for k, v := range args {
		b.WriteString(fmt.Sprintf("MOOSE_ARG_%s=%s ", strings.ToUpper(k), shellQuote(v)))
	}
	b.WriteString(command)
	return b.String()
}

// shellQuote single-quotes a value for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
