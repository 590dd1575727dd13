// Package dedup finds files holding the same content and removes the extra
// copies beyond a retention threshold.
package dedup

import (
	"sort"

	"github.com/sdejongh/mediatidy/pkg/models"
)

// Result is the fingerprint computed for one entry
type Result struct {
	Entry       *models.FileEntry
	Fingerprint models.Fingerprint
	Err         error
}

// Group folds fingerprint results into duplicate groups.
//
// Entries whose metadata probe failed are returned in corrupted and never
// join a group; results carrying any other error are dropped. Entries inside
// a group are ordered oldest first (path breaks ties) and groups are ordered
// by the path of their oldest entry, so the output does not depend on the
// order of results. Only groups with more than one entry are returned.
func Group(results []Result) (groups []models.DuplicateGroup, corrupted []*models.FileEntry) {
	byFingerprint := make(map[models.Fingerprint][]*models.FileEntry)

	for _, r := range results {
		switch {
		case r.Err != nil && models.IsCorrupt(r.Err):
			corrupted = append(corrupted, r.Entry)
		case r.Err != nil, r.Fingerprint.IsZero():
			continue
		default:
			byFingerprint[r.Fingerprint] = append(byFingerprint[r.Fingerprint], r.Entry)
		}
	}

	for fp, entries := range byFingerprint {
		if len(entries) < 2 {
			continue
		}
		sortOldestFirst(entries)
		groups = append(groups, models.DuplicateGroup{Fingerprint: fp, Entries: entries})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Entries[0].Path < groups[j].Entries[0].Path
	})
	sort.Slice(corrupted, func(i, j int) bool {
		return corrupted[i].Path < corrupted[j].Path
	})
	return groups, corrupted
}

// PlanDeletions keeps the oldest keep entries of every group and plans the
// deletion of the rest. A group of keep entries or fewer yields nothing.
func PlanDeletions(groups []models.DuplicateGroup, keep int) []models.RelocationPlan {
	if keep < 1 {
		keep = 1
	}

	var plans []models.RelocationPlan
	for _, g := range groups {
		if len(g.Entries) <= keep {
			continue
		}
		keeper := g.Entries[0]
		for _, e := range g.Entries[keep:] {
			plans = append(plans, models.RelocationPlan{
				Source: e,
				Action: models.ActionDelete,
				Reason: "duplicate of " + keeper.Path,
			})
		}
	}
	return plans
}

func sortOldestFirst(entries []*models.FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
		return a.Path < b.Path
	})
}
