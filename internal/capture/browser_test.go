package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrowser(t *testing.T) {
	tests := []struct {
		in   string
		want Browser
	}{
		{"Chrome", Chrome},
		{"chrome", Chrome},
		{" Chromium ", Chrome},
		{"Firefox", Firefox},
		{"FIREFOX", Firefox},
	}
	for _, tt := range tests {
		got, err := ParseBrowser(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseBrowser_Unknown(t *testing.T) {
	for _, name := range []string{"", "Safari", "Edge", "IE"} {
		_, err := ParseBrowser(name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnknownBrowser)
	}
}
