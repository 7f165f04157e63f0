// Package selection resolves kernel preferences against the gateway's
// kernelspec catalog. Everything here is pure: no state, no I/O.
package selection

import (
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// ResolveDefault maps a preference to a startable kernelspec name, or ""
// when no safe choice exists. Ambiguity (a language matching several specs)
// and absence (matching none) are treated identically: fall back to the
// catalog default rather than guess.
func ResolveDefault(catalog *types.KernelSpecCatalog, pref types.KernelPreference) string {
	if catalog == nil || !pref.ShouldStart || !pref.CanStart {
		return ""
	}

	fallback := ""
	if pref.AutoStartDefault {
		fallback = catalog.Default
	}

	if pref.Name == "" && pref.Language == "" {
		return fallback
	}

	if _, ok := catalog.Get(pref.Name); ok && pref.Name != "" {
		return pref.Name
	}

	if pref.Language == "" {
		return fallback
	}

	matches := byLanguage(catalog, pref.Language)
	if len(matches) == 1 {
		return matches[0]
	}
	return fallback
}

// byLanguage returns the names of all catalog entries for a language.
func byLanguage(catalog *types.KernelSpecCatalog, lang string) []string {
	var names []string
	for name, spec := range catalog.Specs {
		if spec.Language == lang {
			names = append(names, name)
		}
	}
	return names
}
