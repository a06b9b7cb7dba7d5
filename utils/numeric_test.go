package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, Clamp(-4, 0, 10))
	require.Equal(t, 10, Clamp(11, 0, 10))
	require.Equal(t, 7, Clamp(7, 0, 10))
	require.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}

func TestMinMax(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(3), Min(int64(3), 9))
	require.Equal(t, int64(9), Max(int64(3), 9))
}

func TestPercent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		part     int
		whole    int
		expected float64
	}{
		{"half", 50, 100, 50},
		{"empty whole", 10, 0, 0},
		{"over", 150, 100, 100},
		{"quarter", 1, 4, 25},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, testCase.expected, Percent(testCase.part, testCase.whole))
		})
	}
}

func TestMod(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(2), Mod(int64(10), 4))
	require.Equal(t, int64(2), Mod(int64(-2), 4))
	require.Equal(t, 0, Mod(8, 4))
}
