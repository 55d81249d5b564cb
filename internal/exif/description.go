package exif

import (
	"fmt"
	"strconv"
	"strings"
)

// Description keys, in write order
const (
	keyHeight     = "height_cm"
	keySpecies    = "species"
	keyHealth     = "health"
	keySupervisor = "supervisor"
	keyVendor     = "vendor"
	keyTeam       = "team"

	pairSeparator = "; "
)

var descriptionEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `=`, `\=`)

// encodeDescription renders meta as "key=value; key=value". Backslash,
// semicolon and equals inside values are backslash escaped.
func encodeDescription(meta Metadata) string {
	pairs := []struct{ key, value string }{
		{keyHeight, strconv.Itoa(meta.HeightCm)},
		{keySpecies, meta.Species},
		{keyHealth, meta.Health},
		{keySupervisor, meta.Supervisor},
		{keyVendor, meta.Vendor},
		{keyTeam, meta.Team},
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + descriptionEscaper.Replace(p.value)
	}
	return strings.Join(parts, pairSeparator)
}

// splitUnescaped splits s on sep outside escapes and unescapes each part.
func splitUnescaped(s string, sep byte, limit int) []string {
	var parts []string
	var current strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			current.WriteByte('\\')
			current.WriteByte(s[i])
		case c == sep && (limit <= 0 || len(parts) < limit-1):
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	return append(parts, current.String())
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// decodeDescription parses a string produced by encodeDescription into
// meta. Unknown keys are ignored so descriptions written by other tools
// without '=' pairs leave meta untouched.
func decodeDescription(s string, meta *Metadata) error {
	if !strings.Contains(s, "=") {
		return nil
	}

	for i, pair := range splitUnescaped(s, ';', 0) {
		if i > 0 {
			pair = strings.TrimPrefix(pair, " ")
		}
		kv := splitUnescaped(pair, '=', 2)
		if len(kv) != 2 {
			continue
		}
		key, value := unescape(kv[0]), unescape(kv[1])

		switch key {
		case keyHeight:
			height, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid height %q in description: %w", value, err)
			}
			meta.HeightCm = height
		case keySpecies:
			meta.Species = value
		case keyHealth:
			meta.Health = value
		case keySupervisor:
			meta.Supervisor = value
		case keyVendor:
			meta.Vendor = value
		case keyTeam:
			meta.Team = value
		}
	}

	return nil
}
