package dutylog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRGB(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    RGB
		wantErr bool
	}{
		{name: "hex", raw: "#FF8000", want: RGB{R: 255, G: 128, B: 0}},
		{name: "hex lowercase", raw: "#ff0000", want: RGB{R: 255}},
		{name: "rgb", raw: "255,255,0", want: RGB{R: 255, G: 255}},
		{name: "rgb with spaces", raw: "0, 128, 0", want: RGB{G: 128}},
		{name: "short hex", raw: "#FFF", wantErr: true},
		{name: "channel out of range", raw: "256,0,0", wantErr: true},
		{name: "two channels", raw: "1,2", wantErr: true},
		{name: "not a number", raw: "red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRGB(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBackgroundSequence(t *testing.T) {
	assert.Equal(t, "\x1b[48;2;255;0;0m", RGB{R: 255}.Background())
}
