package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return shouldExit=true.
	out := &bytes.Buffer{}
	err := run(out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "expected help text on the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_PlanPrintsEvaluationOrder(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", `
name: demo
variables:
  prefix: demo
resources:
  app:
    type: azure-native:app:ContainerApp
    properties:
      appName: ${prefix}-app
`)
	out := &bytes.Buffer{}
	err := run(out, &bytes.Buffer{}, []string{"-log-level", "error", path})

	require.NoError(t, err)
	require.Equal(t, "prefix\napp\n", out.String())
}

func TestRun_CycleIsReportedWithItsPath(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", `
variables:
  a: ${b}
  b: ${a}
`)
	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"-log-level", "error", path})

	require.Error(t, err)
	require.Contains(t, err.Error(), "dependency cycle: a -> b -> a")
}

func TestRun_ExportWritesTopologyFile(t *testing.T) {
	t.Parallel()

	template := writeFixture(t, "template.yaml", `
name: demo
resources:
  app:
    type: azure-native:app:ContainerApp
    properties:
      template:
        containers:
          - name: web
            image: nginx:1.27
`)
	dest := filepath.Join(t.TempDir(), "topology.yaml")
	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{
		"-log-level", "error", "-export", dest, "-template", template,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Contains(t, string(data), "version:")
	require.Contains(t, string(data), "web:")
	require.Contains(t, string(data), "nginx:1.27")
}
