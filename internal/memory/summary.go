package memory

import (
	"fmt"
	"sort"
	"strings"
)

const (
	summaryRecentCount    = 5
	summaryImportantCount = 5
	summaryArchiveDays    = 3
)

// ContextSummary renders the memory tiers as a compact prompt block of
// at most maxLines lines: the latest recent events, the top important
// events and the most recent archive days. A cap of zero or less
// yields the empty string.
func (s *Store) ContextSummary(maxLines int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxLines <= 0 {
		return ""
	}

	var lines []string

	if len(s.recent) > 0 {
		lines = append(lines, "=== RECENT (last events) ===")
		start := len(s.recent) - summaryRecentCount
		if start < 0 {
			start = 0
		}
		for _, ev := range s.recent[start:] {
			lines = append(lines, formatEventLine(ev))
		}
	}

	if len(s.important) > 0 {
		top := make([]ScoredEvent, len(s.important))
		copy(top, s.important)
		sort.SliceStable(top, func(i, j int) bool {
			return top[i].Importance > top[j].Importance
		})
		if len(top) > summaryImportantCount {
			top = top[:summaryImportantCount]
		}
		lines = append(lines, "", "=== IMPORTANT (remembered facts) ===")
		for _, mem := range top {
			lines = append(lines, formatEventLine(mem.Event))
		}
	}

	if len(s.archive) > 0 {
		dates := make([]string, 0, len(s.archive))
		for date := range s.archive {
			dates = append(dates, date)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(dates)))
		if len(dates) > summaryArchiveDays {
			dates = dates[:summaryArchiveDays]
		}
		lines = append(lines, "", "=== ARCHIVE (past sessions) ===")
		for _, date := range dates {
			lines = append(lines, fmt.Sprintf("[%s] %d events", date, s.archive[date].EventCount))
		}
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n")
}

// formatEventLine renders one event as a single summary line.
// Nothing here returns multiple lines, so the line cap stays exact.
func formatEventLine(ev Event) string {
	fields := ev.Payload.Fields()

	switch ev.Kind {
	case KindChat:
		who := fields["who"]
		if who == "" {
			who = "user"
		}
		return who + ": " + truncateRunes(fields["text"], 80)
	case KindVision:
		return "[vision] " + truncateRunes(fields["summary"], 80)
	case KindAppActivity:
		app := fields["app"]
		if app == "" {
			app = "Unknown"
		}
		category := fields["category"]
		if category == "" {
			category = "unknown"
		}
		return fmt.Sprintf("[using] %s (%s)", app, category)
	case KindLocation:
		x, y, z := fields["x"], fields["y"], fields["z"]
		if x == "" {
			x = "0"
		}
		if y == "" {
			y = "0"
		}
		if z == "" {
			z = "0"
		}
		return fmt.Sprintf("[at] %s, %s, %s", x, y, z)
	default:
		return fmt.Sprintf("[%s] %s", ev.Kind, truncateRunes(stringifyFields(fields), 60))
	}
}

// stringifyFields renders a field map as "k=v" pairs in key order
func stringifyFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}
	return strings.Join(pairs, ", ")
}

// truncateRunes clips s to at most n runes
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
