package sequence

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatCode(t *testing.T) {
	require.Equal(t, "VCH-261016-001AB", formatCode("VCH", "261016", 1, "AB"))
	require.Equal(t, "VCH-261016-0ZZXY", formatCode("VCH", "261016", 36*36-1, "XY"))
	require.Equal(t, "VCH-261016-1000Q2", formatCode("VCH", "261016", 36*36*36, "Q2"))
}

func TestRandomAlphaNumeric(t *testing.T) {
	s, err := randomAlphaNumeric(8)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[A-HJ-NP-Z2-9]{8}$`), s)
}
