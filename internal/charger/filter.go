package charger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/woozymasta/chargermap/internal/geo"
)

// Duplicate detection thresholds.
const (
	StrictDistance    = 10.0  // meters, always a duplicate
	DuplicateDistance = 100.0 // meters, a duplicate when titles match
)

// DuplicateMode selects which records of a duplicate group are kept.
type DuplicateMode string

const (
	KeepAll      DuplicateMode = "include"
	KeepEarliest DuplicateMode = "earliest"
	KeepLatest   DuplicateMode = "latest"
)

// ParseDuplicateMode parses a mode name, empty means KeepAll.
func ParseDuplicateMode(s string) (DuplicateMode, error) {
	switch m := DuplicateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return KeepAll, nil
	case KeepAll, KeepEarliest, KeepLatest:
		return m, nil
	default:
		return "", fmt.Errorf("unknown duplicate mode %q (want include, earliest or latest)", s)
	}
}

var titleCleaner = regexp.MustCompile(`[^a-z0-9\s]`)

func normalizeTitle(title string) string {
	return strings.TrimSpace(titleCleaner.ReplaceAllString(strings.ToLower(title), ""))
}

// GroupDuplicates groups records that describe the same site.
// Grouping is greedy in file order, the first unvisited record anchors each group.
// Records must have coordinates.
func GroupDuplicates(c Collection) []Collection {
	groups := make([]Collection, 0, len(c))
	visited := make([]bool, len(c))

	titles := make([]string, len(c))
	for i, r := range c {
		titles[i] = normalizeTitle(r.Title)
	}

	for i := range c {
		if visited[i] {
			continue
		}
		visited[i] = true
		group := Collection{c[i]}

		for j := i + 1; j < len(c); j++ {
			if visited[j] {
				continue
			}

			d := geo.Haversine(*c[i].Latitude, *c[i].Longitude, *c[j].Latitude, *c[j].Longitude)
			if d <= StrictDistance || (d <= DuplicateDistance && titles[i] == titles[j]) {
				group = append(group, c[j])
				visited[j] = true
			}
		}

		groups = append(groups, group)
	}

	return groups
}

// Dedupe flattens groups back into a collection, keeping the records the mode selects.
func Dedupe(groups []Collection, mode DuplicateMode) Collection {
	out := make(Collection, 0, len(groups))

	for _, g := range groups {
		if len(g) == 0 {
			continue
		}

		switch mode {
		case KeepEarliest:
			out = append(out, pick(g, func(a, b time.Time) bool { return a.Before(b) }))
		case KeepLatest:
			out = append(out, pick(g, func(a, b time.Time) bool { return a.After(b) }))
		default:
			out = append(out, g...)
		}
	}

	return out
}

// pick returns the record whose creation date wins against all others.
// Records without a parseable date never replace the current choice.
func pick(g Collection, better func(a, b time.Time) bool) Record {
	best := g[0]
	bestTime, bestOK := parseCreated(best.DateCreated)

	for _, r := range g[1:] {
		t, ok := parseCreated(r.DateCreated)
		if ok && bestOK && better(t, bestTime) {
			best, bestTime = r, t
		}
	}

	return best
}

// FilterByDate keeps records created within [start, end].
// Bounds are YYYY-MM-DD in UTC and inclusive of the whole day, either may be empty.
// With any bound set, records without a creation date are dropped.
func FilterByDate(c Collection, start, end string) (Collection, error) {
	if start == "" && end == "" {
		return c, nil
	}

	var from, to time.Time
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		from = t
	}
	if end != "" {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return nil, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		to = t.Add(24*time.Hour - time.Second)
	}

	out := make(Collection, 0, len(c))
	for _, r := range c {
		created, ok := parseCreated(r.DateCreated)
		if !ok {
			continue
		}
		if start != "" && created.Before(from) {
			continue
		}
		if end != "" && created.After(to) {
			continue
		}
		out = append(out, r)
	}

	return out, nil
}

var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseCreated parses a creation date, values without a zone are taken as UTC.
func parseCreated(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
