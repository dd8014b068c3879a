package gap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterTwoGroupsWithNoise(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, 0}, {0.99, 0.05},
		{0, 1}, {0.05, 0.99},
		{-0.7071, -0.7071},
	}
	labels := Cluster(vectors, 0.1, 2)
	require.Len(t, labels, 5)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.NotEqual(t, labels[0], labels[2])
	assert.Equal(t, Noise, labels[4])
}

func TestClusterTooFewPoints(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Cluster([][]float32{{1, 0}}, 0.3, 2))
	assert.Nil(t, Cluster(nil, 0.3, 2))
}

func TestClusterAllNoise(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{{1, 0}, {0, 1}, {-1, 0}}
	labels := Cluster(vectors, 0.05, 2)
	require.Len(t, labels, 3)
	for _, l := range labels {
		assert.Equal(t, Noise, l)
	}
}

func TestClusterSingleCluster(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{{1, 0}, {1, 0.01}, {1, -0.01}}
	labels := Cluster(vectors, 0.2, 2)
	require.Len(t, labels, 3)
	for _, l := range labels {
		assert.Equal(t, 0, l)
	}
}
