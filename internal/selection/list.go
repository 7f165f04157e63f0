package selection

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// Group titles rendered by UI clients.
const (
	GroupPreferred        = "Preferred"
	GroupOther            = "Other Kernels"
	GroupMatchingSessions = "Matching Sessions"
	GroupOtherSessions    = "Other Sessions"
)

// noKernelLabel is the explicit "run without a kernel" choice.
const noKernelLabel = "No Kernel"

// BuildList produces the ranked, grouped kernel choices for an interactive
// selection. Groups appear in fixed order: preferred specs, the no-kernel
// marker, remaining specs, running sessions matching the preferred language,
// then all other running sessions.
func BuildList(catalog *types.KernelSpecCatalog, pref types.KernelPreference, running []types.RunningSession) types.SelectionList {
	if !pref.CanStart {
		return types.SelectionList{Groups: []types.SelectionGroup{{
			Entries: []types.SelectionEntry{{
				Label:    noKernelLabel,
				Disabled: true,
				Selected: true,
			}},
		}}}
	}

	cl := collate.New(language.Und)

	preferred := preferredEntries(catalog, pref, cl)
	noKernel := types.SelectionEntry{Label: noKernelLabel}
	if !pref.ShouldStart || len(preferred) == 0 {
		noKernel.Selected = true
	} else {
		preferred[0].Selected = true
	}

	var groups []types.SelectionGroup
	if len(preferred) > 0 {
		groups = append(groups, types.SelectionGroup{Title: GroupPreferred, Entries: preferred})
	}
	groups = append(groups, types.SelectionGroup{Entries: []types.SelectionEntry{noKernel}})

	if other := otherEntries(catalog, preferred, cl); len(other) > 0 {
		groups = append(groups, types.SelectionGroup{Title: GroupOther, Entries: other})
	}

	matching, rest := sessionEntries(catalog, pref, running)
	if len(matching) > 0 {
		groups = append(groups, types.SelectionGroup{Title: GroupMatchingSessions, Entries: matching})
	}
	if len(rest) > 0 {
		groups = append(groups, types.SelectionGroup{Title: GroupOtherSessions, Entries: rest})
	}

	return types.SelectionList{Groups: groups}
}

// preferredEntries collects the explicit name (when known to the catalog)
// plus every spec matching the preferred language, falling back to the
// catalog default when neither applies.
func preferredEntries(catalog *types.KernelSpecCatalog, pref types.KernelPreference, cl *collate.Collator) []types.SelectionEntry {
	if catalog == nil {
		return nil
	}

	names := make(map[string]bool)
	if _, ok := catalog.Get(pref.Name); ok && pref.Name != "" {
		names[pref.Name] = true
	}
	if pref.Language != "" {
		for name, spec := range catalog.Specs {
			if spec.Language == pref.Language && name != pref.Name {
				names[name] = true
			}
		}
	}
	if len(names) == 0 {
		if _, ok := catalog.Get(catalog.Default); ok {
			names[catalog.Default] = true
		}
	}

	return sortedSpecEntries(catalog, names, cl)
}

// otherEntries returns every catalog entry not already ranked.
func otherEntries(catalog *types.KernelSpecCatalog, taken []types.SelectionEntry, cl *collate.Collator) []types.SelectionEntry {
	if catalog == nil {
		return nil
	}

	used := make(map[string]bool, len(taken))
	for _, e := range taken {
		if e.Identity != nil {
			used[e.Identity.Name] = true
		}
	}

	names := make(map[string]bool)
	for name := range catalog.Specs {
		if !used[name] {
			names[name] = true
		}
	}
	return sortedSpecEntries(catalog, names, cl)
}

// sortedSpecEntries materializes spec entries ordered by display name,
// compared with a locale collator.
func sortedSpecEntries(catalog *types.KernelSpecCatalog, names map[string]bool, cl *collate.Collator) []types.SelectionEntry {
	entries := make([]types.SelectionEntry, 0, len(names))
	for name := range names {
		spec, _ := catalog.Get(name)
		label := spec.DisplayName
		if label == "" {
			label = name
		}
		entries = append(entries, types.SelectionEntry{
			Label:    label,
			Identity: &types.KernelIdentity{Name: name},
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return cl.CompareString(entries[i].Label, entries[j].Label) < 0
	})
	return entries
}

// sessionEntries splits running sessions into language matches and the rest,
// both ordered by path. A session whose kernel id equals the preferred id is
// excluded entirely: it is the session being configured.
func sessionEntries(catalog *types.KernelSpecCatalog, pref types.KernelPreference, running []types.RunningSession) (matching, rest []types.SelectionEntry) {
	sorted := make([]types.RunningSession, len(running))
	copy(sorted, running)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for _, s := range sorted {
		if pref.ID != "" && s.KernelID == pref.ID {
			continue
		}
		spec, known := catalog.Get(s.KernelName)
		label := s.KernelName
		if known && spec.DisplayName != "" {
			label = spec.DisplayName
		}
		entry := types.SelectionEntry{
			Label:    s.Path + " (" + label + ")",
			Identity: &types.KernelIdentity{ID: s.KernelID, Name: s.KernelName},
		}
		if known && pref.Language != "" && spec.Language == pref.Language {
			matching = append(matching, entry)
		} else {
			rest = append(rest, entry)
		}
	}
	return matching, rest
}
