package initshim

import (
	"strings"
)

// UnitType distinguishes the unit kinds initshim understands.
type UnitType int

const (
	UnitTypeOther   UnitType = iota // anything that is neither .service nor .path
	UnitTypeService                 // *.service
	UnitTypePath                    // *.path
)

// String returns the unit type as it appears in unit suffixes.
func (t UnitType) String() string {
	switch t {
	case UnitTypeService:
		return "service"
	case UnitTypePath:
		return "path"
	default:
		return "other"
	}
}

// UnitName is a unit file name such as "nginx.service" or "reindex.path".
type UnitName string

// NormalizeUnitName turns a control-surface argument into a UnitName. Bare
// names get the ".service" suffix, as systemctl does.
func NormalizeUnitName(s string) UnitName {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		if _, ok := unitSuffixes[s[i+1:]]; ok {
			return UnitName(s)
		}
	}
	return UnitName(s + ServiceSuffix)
}

// unitSuffixes are the unit types systemctl recognises on an argument.
// Names such as "php7.4-fpm" carry a dot without carrying a type.
var unitSuffixes = map[string]struct{}{
	"service":   {},
	"path":      {},
	"socket":    {},
	"timer":     {},
	"target":    {},
	"mount":     {},
	"automount": {},
	"swap":      {},
	"device":    {},
	"slice":     {},
	"scope":     {},
}

// Type returns the unit type derived from the suffix.
func (u UnitName) Type() UnitType {
	switch {
	case strings.HasSuffix(string(u), ServiceSuffix):
		return UnitTypeService
	case strings.HasSuffix(string(u), PathSuffix):
		return UnitTypePath
	default:
		return UnitTypeOther
	}
}

// Base returns the unit name without its type suffix.
// e.g., "reindex.path" -> "reindex"
func (u UnitName) Base() string {
	s := string(u)
	if i := strings.LastIndex(s, "."); i > 0 {
		return s[:i]
	}
	return s
}

// Valid reports whether the name can be used to look up a unit file.
func (u UnitName) Valid() bool {
	s := string(u)
	return s != "" && s != "." && s != ".." && !strings.ContainsRune(s, '/')
}

// String returns the unit name as a string.
func (u UnitName) String() string {
	return string(u)
}
