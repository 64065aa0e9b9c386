package visualize

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/mobtree/dataset"
	"github.com/YuminosukeSato/mobtree/fluctuation"
	"github.com/YuminosukeSato/mobtree/mob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG")

func shiftData(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(dataset.NewContinuous("y"), dataset.NewContinuous("x"), dataset.NewContinuous("z"))
	require.NoError(t, err)
	for i := 0; i < 120; i++ {
		x := float64(i%10) + 1
		y := 1 + 2*x
		if i >= 60 {
			y = 1 - x
		}
		y += float64((i*7)%5) - 2
		require.NoError(t, d.AppendValues(y, x, float64(i)))
	}
	return d
}

func TestProcessPlot(t *testing.T) {
	d := shiftData(t)
	tree, err := mob.LMTree(context.Background(), d, "y ~ x | z")
	require.NoError(t, err)

	path, err := tree.Fluctuation(d, 1, "z")
	require.NoError(t, err)
	assert.Greater(t, path.Boundary, 0.0)

	p, err := Process(path)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p, "png"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	_, err = Process(&fluctuation.Path{})
	assert.Error(t, err)
}

func TestLeafFitsAndSave(t *testing.T) {
	d := shiftData(t)
	tree, err := mob.LMTree(context.Background(), d, "y ~ x | z")
	require.NoError(t, err)

	p, err := LeafFits(tree, d, "x")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "leaves.png")
	require.NoError(t, Save(p, out))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, pngMagic))

	_, err = LeafFits(tree, d, "z")
	assert.Error(t, err)
	assert.Error(t, Save(p, filepath.Join(t.TempDir(), "noext")))
}
