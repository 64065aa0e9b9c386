package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBreakpointCSV は age <= 18 と age > 18 で傾きの異なるデータを書き出す
func writeBreakpointCSV(t *testing.T, dir string) string {
	t.Helper()
	noise := []float64{1, -1, -1, 1, -1, 1, 1, -1, 0, 0}
	var sb strings.Builder
	sb.WriteString("y,x,age,gender\n")
	for age := 10; age <= 27; age++ {
		for x := 1; x <= 10; x++ {
			y := 1 + 2*float64(x) + noise[x-1]
			if age > 18 {
				y = 1 - float64(x) + noise[x-1]
			}
			g := "f"
			if x > 4 {
				g = "m"
			}
			fmt.Fprintf(&sb, "%g,%d,%d,%s\n", y, x, age, g)
		}
	}
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cliParser()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGrowPredictShow(t *testing.T) {
	dir := t.TempDir()
	data := writeBreakpointCSV(t, dir)
	treePath := filepath.Join(dir, "tree.json")

	_, err := run(t, "grow", "-i", data, "-f", "y ~ x | age + gender", "-o", treePath, "--log-level", "error")
	require.NoError(t, err)

	out, err := run(t, "show", "-t", treePath)
	require.NoError(t, err)
	assert.Contains(t, out, "age <= 18")
	assert.Contains(t, out, "Number of terminal nodes: 2")
	assert.Contains(t, out, "AIC:")

	out, err = run(t, "show", "-t", treePath, "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "(Intercept)")

	out, err = run(t, "test", "-t", treePath, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "split on age")
	assert.Contains(t, out, "gender")

	predPath := filepath.Join(dir, "pred.csv")
	_, err = run(t, "predict", "-t", treePath, "-i", data, "--type", "node", "-o", predPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(predPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 181)
	assert.Equal(t, "y,x,age,gender,.node", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",2"))
	assert.True(t, strings.HasSuffix(lines[180], ",3"))

	_, err = run(t, "predict", "-t", treePath, "-i", data, "--evaluate", "-o", predPath)
	require.NoError(t, err)

	plotPath := filepath.Join(dir, "process.png")
	_, err = run(t, "plot", "-t", treePath, "-i", data, "--variable", "age", "-o", plotPath)
	require.NoError(t, err)
	_, err = os.Stat(plotPath)
	assert.NoError(t, err)
}

func TestGrowWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	data := writeBreakpointCSV(t, dir)
	cfg := filepath.Join(dir, "mob.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("maxdepth: 1\nprune: aic\n"), 0o644))

	out, err := run(t, "grow", "-i", data, "-f", "y ~ x | age", "-c", cfg, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"maxdepth": 1`)
	assert.Contains(t, out, `"stop": "max depth"`)
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	data := writeBreakpointCSV(t, dir)

	_, err := run(t, "grow", "-i", data)
	assert.Error(t, err)
	_, err = run(t, "grow", "-i", data, "-f", "y ~ x | age", "--alpha", "2")
	assert.Error(t, err)
	_, err = run(t, "show")
	assert.Error(t, err)
	_, err = run(t, "plot", "-t", "x.json", "-o", "x.png")
	assert.Error(t, err)
	_, err = run(t, "grow", "-f", "y ~ x", "--log-level", "loud")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mobtree dev\n", out)
}
