package dutylog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RGB is a 24-bit terminal background colour.
type RGB struct {
	R, G, B uint8
}

// ParseRGB accepts "#RRGGBB" or "R,G,B" with each channel in 0-255.
func ParseRGB(raw string) (RGB, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "#") {
		hex := raw[1:]
		if len(hex) != 6 {
			return RGB{}, errors.Errorf("invalid hex color %q", raw)
		}
		channels := make([]uint8, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return RGB{}, errors.Wrapf(err, "invalid hex color %q", raw)
			}
			channels[i] = uint8(v)
		}
		return RGB{R: channels[0], G: channels[1], B: channels[2]}, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return RGB{}, errors.Errorf("invalid rgb color %q", raw)
	}
	channels := make([]uint8, 3)
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return RGB{}, errors.Wrapf(err, "invalid rgb color %q", raw)
		}
		channels[i] = uint8(v)
	}
	return RGB{R: channels[0], G: channels[1], B: channels[2]}, nil
}

const colorReset = "\x1b[0m"

// Background returns the ANSI truecolor background sequence.
func (c RGB) Background() string {
	return fmt.Sprintf("\x1b[48;2;%d;%d;%dm", c.R, c.G, c.B)
}
