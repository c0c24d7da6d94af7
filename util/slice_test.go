package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsAll(t *testing.T) {
	require.True(t, ContainsAll([]string{"a", "b", "c"}, []string{"b", "a"}))
	require.True(t, ContainsAll([]string{"a"}, nil))
	require.False(t, ContainsAll([]string{"a", "b"}, []string{"a", "x"}))
	require.False(t, ContainsAll(nil, []string{"a"}))
}

func TestDistinct(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Distinct([]string{"a", "b", "a", "c", "b"}))
	require.Empty(t, Distinct(nil))
}
