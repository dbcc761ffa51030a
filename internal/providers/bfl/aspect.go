package bfl

import (
	"log/slog"
	"strconv"
	"strings"
)

const defaultAspectRatio = "1:1"

// AspectRatio converts a "WxH" pixel size into a reduced "W:H" ratio.
// Empty or malformed sizes yield "1:1"; malformed ones are logged.
func AspectRatio(size string) string {
	w, h, ok := parseSize(size)
	if !ok {
		if strings.TrimSpace(size) != "" {
			slog.Warn("unparseable image size, using default aspect ratio",
				"size", size,
				"aspect_ratio", defaultAspectRatio,
			)
		}
		return defaultAspectRatio
	}
	g := gcd(w, h)
	return strconv.Itoa(w/g) + ":" + strconv.Itoa(h/g)
}

func parseSize(size string) (int, int, bool) {
	ws, hs, found := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !found {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
