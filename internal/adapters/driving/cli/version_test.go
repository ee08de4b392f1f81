package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "true", versionCmd.Annotations[skipServices])

	tests := []struct {
		version string
		want    string
	}{
		{"dev", "nexus version dev\n"},
		{"v1.2.3", "nexus version v1.2.3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			old := version
			version = tt.version
			defer func() { version = old }()

			out, err := runCmd(t, "", "version")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
