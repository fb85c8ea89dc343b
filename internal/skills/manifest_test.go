package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodManifest = `
name: disk_space
description: Report free disk space
examples:
  - how much disk space is left
  - is my disk full
command: df -h /
requires_elevated_trust: true
`

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "disk.yaml", goodManifest)

	routes, err := LoadManifests(dir)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	r := routes[0]
	assert.Equal(t, "disk_space", r.Name)
	assert.Len(t, r.Examples, 2)
	assert.True(t, r.RequiresElevatedTrust)
}

func TestLoadManifestsMissingDir(t *testing.T) {
	routes, err := LoadManifests(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestLoadManifestsSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.yaml", goodManifest)
	writeManifest(t, dir, "broken.yaml", "name: [unclosed")
	writeManifest(t, dir, "incomplete.yaml", "name: no_examples\ncommand: ls\n")
	writeManifest(t, dir, "notes.txt", "not a manifest")

	routes, err := LoadManifests(dir)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "disk_space", routes[0].Name)
}

func TestManifestRouteRunsInSandbox(t *testing.T) {
	route := manifestRoute(Manifest{
		Name:     "echoer",
		Examples: []string{"echo something"},
		Command:  `echo "arg was $MOOSE_ARG_MESSAGE"`,
	})

	sc := &Context{Sandbox: NewLocalSandbox()}
	out, err := route.Execute(context.Background(), route.ExtractArgs("hello there"), "", sc)
	require.NoError(t, err)
	assert.Equal(t, "arg was hello there", out)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
