package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandMatrix_TwoByThree(t *testing.T) {
	matrix := MatrixSpec{
		Axes: map[string][]string{
			"go-version": {"1.23", "1.24"},
			"os":         {"ubuntu-latest", "macos-latest", "windows-latest"},
		},
	}

	combos := ExpandMatrix(matrix)
	assert.Len(t, combos, 6)

	// Axis names iterate in sorted order, values in declared order.
	assert.Equal(t, map[string]string{"go-version": "1.23", "os": "ubuntu-latest"}, combos[0])
	assert.Equal(t, map[string]string{"go-version": "1.24", "os": "windows-latest"}, combos[5])
}

func TestExpandMatrix_Deterministic(t *testing.T) {
	matrix := MatrixSpec{
		Axes: map[string][]string{
			"a": {"1", "2"},
			"b": {"x", "y"},
			"c": {"p", "q"},
		},
	}

	first := ExpandMatrix(matrix)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ExpandMatrix(matrix))
	}
}

func TestExpandMatrix_Empty(t *testing.T) {
	combos := ExpandMatrix(MatrixSpec{})
	assert.Len(t, combos, 1)
	assert.Empty(t, combos[0])
}

func TestExpandMatrix_SingleAxis(t *testing.T) {
	combos := ExpandMatrix(MatrixSpec{Axes: map[string][]string{"os": {"linux", "darwin"}}})
	assert.Equal(t, []map[string]string{
		{"os": "linux"},
		{"os": "darwin"},
	}, combos)
}

func TestExpandMatrix_Exclude(t *testing.T) {
	matrix := MatrixSpec{
		Axes: map[string][]string{
			"go-version": {"1.23", "1.24"},
			"os":         {"ubuntu-latest", "windows-latest"},
		},
		Exclude: []map[string]string{
			{"go-version": "1.23", "os": "windows-latest"},
		},
	}

	combos := ExpandMatrix(matrix)
	assert.Len(t, combos, 3)
	for _, combo := range combos {
		if combo["go-version"] == "1.23" {
			assert.NotEqual(t, "windows-latest", combo["os"])
		}
	}
}

func TestExpandMatrix_ExcludeSubmatch(t *testing.T) {
	// A partial exclude removes every combination it is a subset of.
	matrix := MatrixSpec{
		Axes: map[string][]string{
			"go-version": {"1.23", "1.24"},
			"os":         {"linux", "windows"},
		},
		Exclude: []map[string]string{
			{"os": "windows"},
		},
	}

	combos := ExpandMatrix(matrix)
	assert.Len(t, combos, 2)
	for _, combo := range combos {
		assert.Equal(t, "linux", combo["os"])
	}
}

func TestExpandMatrix_ExcludeAll(t *testing.T) {
	matrix := MatrixSpec{
		Axes: map[string][]string{
			"os": {"linux"},
		},
		Exclude: []map[string]string{
			{"os": "linux"},
		},
	}

	assert.Empty(t, ExpandMatrix(matrix))
}

func TestMatrixLabel(t *testing.T) {
	assert.Equal(t, "go-version:1.24, os:linux", MatrixLabel(map[string]string{
		"os":         "linux",
		"go-version": "1.24",
	}))
	assert.Equal(t, "", MatrixLabel(nil))
}
