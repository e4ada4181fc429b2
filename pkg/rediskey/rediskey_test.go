package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSequenceKey(t *testing.T) {
	require.Equal(t, "seq:VCH:261016", BuildSequenceKey("VCH", "261016"))
	require.Equal(t, "a:b", NamespaceKey("a", "b"))
}
