package meshref

import (
	"errors"
	"fmt"
	"strings"
)

// Format names a fixture packaging format.
type Format string

const (
	FormatDAE   Format = "dae"
	FormatSTL   Format = "stl"
	FormatUnity Format = "unity"
	FormatMJCF  Format = "mjcf"
)

// Formats lists every supported format in CLI order.
var Formats = []Format{FormatDAE, FormatSTL, FormatUnity, FormatMJCF}

var ErrUnsupportedFormat = errors.New("unsupported fixture format")

var preferredExt = map[Format]string{
	FormatDAE:   ".dae",
	FormatSTL:   ".stl",
	FormatUnity: ".dae",
	FormatMJCF:  ".obj",
}

var fallbackExt = map[string][]string{
	".dae": {".stl", ".obj"},
	".stl": {".dae", ".obj"},
	".obj": {".dae", ".stl"},
}

// ParseFormat validates a format name. Matching is exact after trimming.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimSpace(s))
	if _, ok := preferredExt[f]; !ok {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, s, formatList())
	}
	return f, nil
}

// Preferred returns the canonical mesh extension for the format.
func (f Format) Preferred() string { return preferredExt[f] }

// Priority returns the extensions tried when resolving a reference: the
// preferred extension followed by its fallbacks. Nil for unknown formats.
func (f Format) Priority() []string {
	pref, ok := preferredExt[f]
	if !ok {
		return nil
	}
	out := make([]string, 0, 1+len(fallbackExt[pref]))
	out = append(out, pref)
	return append(out, fallbackExt[pref]...)
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
