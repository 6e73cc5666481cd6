package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareTrichotomy(t *testing.T) {
	cases := []struct {
		name string
		a, b VectorClock
		want Ordering
	}{
		{"equal empty", VectorClock{}, VectorClock{}, Equal},
		{"equal with missing keys as zero", VectorClock{"c1": 0}, VectorClock{}, Equal},
		{"greater", VectorClock{"c1": 2}, VectorClock{"c1": 1}, Greater},
		{"less", VectorClock{"c1": 1}, VectorClock{"c1": 2}, Less},
		{"concurrent", VectorClock{"c1": 1, "c2": 0}, VectorClock{"c1": 0, "c2": 1}, Concurrent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compare(tc.a, tc.b))
		})
	}
}

func TestCompareSymmetricInverse(t *testing.T) {
	a := VectorClock{"c1": 3, "c2": 1}
	b := VectorClock{"c1": 1, "c2": 1}

	assert.Equal(t, Greater, Compare(a, b))
	assert.Equal(t, Less, Compare(b, a))
}

func TestMergeIsPointwiseMax(t *testing.T) {
	a := VectorClock{"c1": 3, "c2": 0}
	b := VectorClock{"c1": 1, "c2": 5}

	merged := Merge(a, b)
	assert.Equal(t, int64(3), merged["c1"])
	assert.Equal(t, int64(5), merged["c2"])
}

func TestIncrementDoesNotMutateInput(t *testing.T) {
	a := VectorClock{"c1": 1}
	b := Increment(a, "c1")

	assert.Equal(t, int64(1), a["c1"])
	assert.Equal(t, int64(2), b["c1"])
}

func TestMissingKeysComparedAsZero(t *testing.T) {
	a := VectorClock{"c1": 1}
	b := VectorClock{}

	assert.Equal(t, Greater, Compare(a, b))
	assert.Equal(t, Less, Compare(b, a))
}
