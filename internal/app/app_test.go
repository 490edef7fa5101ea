package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stackgraphgo/internal/app"
)

const containerAppsTemplate = `
name: container-apps
resources:
  resourceGroup:
    type: azure-native:resources:ResourceGroup
  workspace:
    type: azure-native:operationalinsights:Workspace
    properties:
      resourceGroupName: ${resourceGroup.name}
variables:
  workspaceSharedKeys:
    fn::invoke:
      function: azure-native:operationalinsights:getSharedKeys
      arguments:
        resourceGroupName: ${resourceGroup.name}
        workspaceName: ${workspace.name}
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runApp(t *testing.T, cfg app.Config) (string, error) {
	t.Helper()
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}
	config, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a := app.NewApp(out, &bytes.Buffer{}, config)
	runErr := a.Run(context.Background())
	return out.String(), runErr
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     app.Config
		wantMsg string
	}{
		{
			name:    "an input path is required",
			cfg:     app.Config{},
			wantMsg: "a template or topology path is required",
		},
		{
			name:    "template and topology are mutually exclusive",
			cfg:     app.Config{TemplatePath: "a.yaml", TopologyPath: "b.yaml"},
			wantMsg: "mutually exclusive",
		},
		{
			name:    "unknown mode",
			cfg:     app.Config{TemplatePath: "a.yaml", Mode: "destroy"},
			wantMsg: `unknown mode "destroy"`,
		},
		{
			name:    "preview needs a template",
			cfg:     app.Config{TopologyPath: "b.yaml", Mode: app.ModePreview},
			wantMsg: "requires a template",
		},
		{
			name:    "export needs a destination",
			cfg:     app.Config{TemplatePath: "a.yaml", Mode: app.ModeExport},
			wantMsg: "export requires a destination path",
		},
		{
			name:    "output format is checked",
			cfg:     app.Config{TemplatePath: "a.yaml", Output: "xml"},
			wantMsg: "invalid output format",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := app.NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	t.Parallel()

	config, err := app.NewConfig(app.Config{TemplatePath: "a.yaml"})
	require.NoError(t, err)
	assert.Equal(t, app.ModePlan, config.Mode)
	assert.Equal(t, "text", config.Output)
	assert.Equal(t, 10, config.WorkerCount)
}

func TestRun_PlanOrdersDependenciesFirst(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", containerAppsTemplate)
	out, err := runApp(t, app.Config{TemplatePath: path})
	require.NoError(t, err)
	assert.Equal(t, "resourceGroup\nworkspace\nworkspaceSharedKeys\n", out)
}

func TestRun_PlanJSON(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", containerAppsTemplate)
	out, err := runApp(t, app.Config{TemplatePath: path, Output: "json"})
	require.NoError(t, err)

	var payload struct {
		Order []string `json:"order"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, []string{"resourceGroup", "workspace", "workspaceSharedKeys"}, payload.Order)
}

func TestRun_LevelsGroupIndependentNodes(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", containerAppsTemplate)
	out, err := runApp(t, app.Config{TemplatePath: path, Mode: app.ModeLevels})
	require.NoError(t, err)
	assert.Equal(t, "0: resourceGroup\n1: workspace\n2: workspaceSharedKeys\n", out)
}

func TestRun_CheckPrintsSummary(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", containerAppsTemplate)
	out, err := runApp(t, app.Config{TemplatePath: path, Mode: app.ModeCheck})
	require.NoError(t, err)
	assert.Equal(t, "ok: 3 nodes, 3 edges\n", out)
}

func TestRun_TopologyPlan(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "topology.yaml", `
version: "3.9"
services:
  app:
    image: demo/app
    depends_on:
      - redis
    networks:
      - backend
  redis:
    image: redis:7
    networks:
      - backend
networks:
  backend: {}
`)
	out, err := runApp(t, app.Config{TopologyPath: path})
	require.NoError(t, err)
	assert.Equal(t, "network.backend\nservice.redis\nservice.app\n", out)
}

func TestRun_PreviewPrintsResolvedValues(t *testing.T) {
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
	out, err := runApp(t, app.Config{TemplatePath: path, Mode: app.ModePreview})
	require.NoError(t, err)
	assert.Contains(t, out, "prefix: demo")
	assert.Contains(t, out, "appName: demo-app")
}

func TestRun_CollectsEveryUnknownReference(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "template.yaml", `
resources:
  app:
    type: azure-native:app:ContainerApp
    properties:
      a: ${missingOne.x}
      b: ${missingTwo.y}
`)
	_, err := runApp(t, app.Config{TemplatePath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missingOne")
	assert.Contains(t, err.Error(), "missingTwo")
}

func TestRun_WalkReportsNodeStatuses(t *testing.T) {
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
	out, err := runApp(t, app.Config{TemplatePath: path, Mode: app.ModeWalk, WorkerCount: 2})
	require.NoError(t, err)
	assert.Equal(t, "prefix: done\napp: done\n", out)
}

func TestRun_DirectoryWithOneTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stack.yaml"), []byte(containerAppsTemplate), 0o600))

	out, err := runApp(t, app.Config{TemplatePath: dir})
	require.NoError(t, err)
	assert.Equal(t, "resourceGroup\nworkspace\nworkspaceSharedKeys\n", out)
}

func TestRun_DirectoryWithSeveralTemplatesIsAmbiguous(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), []byte(containerAppsTemplate), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yaml"), []byte(containerAppsTemplate), 0o600))

	_, err := runApp(t, app.Config{TemplatePath: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple templates found")
}
