package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns its standard output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCalibrations_ImportListExport(t *testing.T) {
	dir := t.TempDir()
	calFile := filepath.Join(dir, "keyboard_calibration.txt")
	input := filepath.Join(dir, "in.txt")
	writeFile(t, input, "J,400,300\nF,250,310\nbad line\nJ,401,299\n")

	out, err := run(t, "", "--calibration-file", calFile, "calibrations", "import", input)
	require.NoError(t, err)
	assert.Equal(t, "Imported 2 calibrations (1 malformed lines skipped)\n", out)

	out, err = run(t, "", "--calibration-file", calFile, "calibrations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Regexp(t, `J\s+401\s+299`, out)
	assert.Regexp(t, `F\s+250\s+310`, out)

	out, err = run(t, "", "--calibration-file", calFile, "calibrations", "export")
	require.NoError(t, err)
	assert.Equal(t, "J,401,299\nF,250,310\n", out)
}

func TestCalibrations_ListEmpty(t *testing.T) {
	calFile := filepath.Join(t.TempDir(), "keyboard_calibration.txt")

	out, err := run(t, "", "--calibration-file", calFile, "calibrations", "list")
	require.NoError(t, err)
	assert.Equal(t, "No calibrations recorded\n", out)
}

func TestCalibrations_FileToSQLite(t *testing.T) {
	dir := t.TempDir()
	calFile := filepath.Join(dir, "keyboard_calibration.txt")
	db := filepath.Join(dir, "keyfinger.db")
	exported := filepath.Join(dir, "export.txt")
	writeFile(t, calFile, "A,10,20\nS,30,20\nSPACE,320,400\n")

	_, err := run(t, "", "--calibration-file", calFile, "calibrations", "export", exported)
	require.NoError(t, err)

	out, err := run(t, "", "--backend", "sqlite", "--database", db, "calibrations", "import", exported)
	require.NoError(t, err)
	assert.Equal(t, "Imported 3 calibrations\n", out)

	out, err = run(t, "", "--backend", "sqlite", "--database", db, "calibrations", "export", "-")
	require.NoError(t, err)
	assert.Equal(t, "A,10,20\nS,30,20\nSPACE,320,400\n", out)
}

func TestCalibrations_ImportFromStdin(t *testing.T) {
	calFile := filepath.Join(t.TempDir(), "keyboard_calibration.txt")

	out, err := run(t, "K,1,2\n", "--calibration-file", calFile, "calibrations", "import", "-")
	require.NoError(t, err)
	assert.Equal(t, "Imported 1 calibrations\n", out)

	data, err := os.ReadFile(calFile)
	require.NoError(t, err)
	assert.Equal(t, "K,1,2\n", string(data))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	calFile := filepath.Join(dir, "from-config.txt")
	cfg := filepath.Join(dir, "config.yaml")
	writeFile(t, cfg, "calibration:\n  file: "+calFile+"\n")
	writeFile(t, calFile, "Q,5,6\n")

	out, err := run(t, "", "--config", cfg, "calibrations", "export")
	require.NoError(t, err)
	assert.Equal(t, "Q,5,6\n", out)
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "backend", args: []string{"--backend", "postgres", "calibrations", "list"}},
		{name: "reference", args: []string{"--reference", "xx", "calibrations", "list"}},
		{name: "log level", args: []string{"--log-level", "loud", "calibrations", "list"}},
		{name: "missing config", args: []string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "calibrations", "list"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--calibration-file", filepath.Join(t.TempDir(), "cal.txt")}, tt.args...)
			_, err := run(t, "", args...)
			assert.Error(t, err)
		})
	}
}

func TestRecord_InvalidKey(t *testing.T) {
	calFile := filepath.Join(t.TempDir(), "cal.txt")

	_, err := run(t, "", "--calibration-file", calFile, "record", "a,b")
	assert.Error(t, err)
}

func TestInfer_NotCalibrated(t *testing.T) {
	calFile := filepath.Join(t.TempDir(), "cal.txt")

	_, err := run(t, "", "--calibration-file", calFile, "infer", "J")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not calibrated")
}

func TestDashboardURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000/", dashboardURL(":8000"))
	assert.Equal(t, "http://127.0.0.1:9000/", dashboardURL("127.0.0.1:9000"))
}
