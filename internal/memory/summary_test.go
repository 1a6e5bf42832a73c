package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextSummaryEmptyStore(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	assert.Equal(t, "", store.ContextSummary(15))
}

func TestContextSummaryZeroOrNegativeCap(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	store.AddChat("hello", "user")

	assert.Equal(t, "", store.ContextSummary(0))
	assert.Equal(t, "", store.ContextSummary(-3))
}

func TestContextSummarySections(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	for i := 0; i < 7; i++ {
		store.AddAppActivity(fmt.Sprintf("app-%d", i), "tools", false, false)
	}
	store.AddChat("remember the 7pm standup?", "user")

	summary := store.ContextSummary(15)
	lines := strings.Split(summary, "\n")

	require.Len(t, lines, 9)
	assert.Equal(t, "=== RECENT (last events) ===", lines[0])
	assert.Equal(t, "[using] app-3 (tools)", lines[1])
	assert.Equal(t, "[using] app-6 (tools)", lines[4])
	assert.Equal(t, "user: remember the 7pm standup?", lines[5])
	assert.Equal(t, "", lines[6])
	assert.Equal(t, "=== IMPORTANT (remembered facts) ===", lines[7])
	assert.Equal(t, "user: remember the 7pm standup?", lines[8])

	head := store.ContextSummary(3)
	assert.Equal(t, strings.Join(lines[:3], "\n"), head)
}

func TestSummarySurfacesChatAboveActivityNoise(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	for i := 0; i < 19; i++ {
		store.AddAppActivity(fmt.Sprintf("app-%d", i), "tools", false, false)
	}
	store.AddChat("remember to water the fern, always?", "user")

	stats := store.Stats()
	assert.Equal(t, 20, stats.RecentItems)
	assert.Equal(t, 1, stats.ImportantItems)

	summary := store.ContextSummary(15)
	assert.NotContains(t, summary, "ARCHIVE")

	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "[using] app-15 (tools)", lines[1])
	assert.Equal(t, "user: remember to water the fern, always?", lines[5])
	assert.Equal(t, "=== IMPORTANT (remembered facts) ===", lines[7])
	assert.Equal(t, "user: remember to water the fern, always?", lines[8])
}

func TestContextSummaryOmitsEmptySections(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	store.AddAppActivity("files", "system", false, false)

	summary := store.ContextSummary(15)
	assert.NotContains(t, summary, "IMPORTANT")
	assert.NotContains(t, summary, "ARCHIVE")
	assert.Equal(t, "=== RECENT (last events) ===\n[using] files (system)", summary)
}

func TestContextSummaryLeadingBlankWithoutRecent(t *testing.T) {
	store := newTestStore(t, DefaultConfig())

	var snap Snapshot
	snap.Important = []ScoredEvent{{
		Event: Event{
			ID:        "ev-1",
			Kind:      KindPreference,
			Payload:   PreferencePayload{Topic: "rain", Sentiment: "likes"},
			Timestamp: time.Now(),
		},
		Importance: 0.9,
	}}
	store.RestoreSnapshot(snap)

	summary := store.ContextSummary(15)
	assert.True(t, strings.HasPrefix(summary, "\n=== IMPORTANT"))
}

func TestContextSummaryArchiveSection(t *testing.T) {
	store := newTestStore(t, DefaultConfig())
	now := time.Now()

	for day := 2; day <= 5; day++ {
		ts := now.AddDate(0, 0, -day)
		store.addAt(ChatPayload{Who: "user", Text: fmt.Sprintf("note from day %d", day)}, ts)
	}
	store.sweepAt(now)

	summary := store.ContextSummary(15)
	lines := strings.Split(summary, "\n")

	require.Len(t, lines, 10)
	assert.Equal(t, "", lines[5])
	assert.Equal(t, "=== ARCHIVE (past sessions) ===", lines[6])
	assert.Equal(t, fmt.Sprintf("[%s] 1 events", now.AddDate(0, 0, -2).Format("2006-01-02")), lines[7])
	assert.Equal(t, fmt.Sprintf("[%s] 1 events", now.AddDate(0, 0, -3).Format("2006-01-02")), lines[8])
	assert.Equal(t, fmt.Sprintf("[%s] 1 events", now.AddDate(0, 0, -4).Format("2006-01-02")), lines[9])
	assert.NotContains(t, summary, now.AddDate(0, 0, -5).Format("2006-01-02"))
}

func TestFormatEventLine(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "chat",
			ev:   Event{Kind: KindChat, Payload: ChatPayload{Who: "companion", Text: "good morning"}},
			want: "companion: good morning",
		},
		{
			name: "chat without who",
			ev:   Event{Kind: KindChat, Payload: ChatPayload{Text: "hello"}},
			want: "user: hello",
		},
		{
			name: "chat truncated to eighty runes",
			ev:   Event{Kind: KindChat, Payload: ChatPayload{Who: "user", Text: strings.Repeat("ż", 100)}},
			want: "user: " + strings.Repeat("ż", 80),
		},
		{
			name: "vision",
			ev:   Event{Kind: KindVision, Payload: VisionPayload{Summary: "a red bird on the feeder", Path: "shots/bird.png"}},
			want: "[vision] a red bird on the feeder",
		},
		{
			name: "app activity",
			ev:   Event{Kind: KindAppActivity, Payload: AppActivityPayload{App: "Blender", Category: "creative"}},
			want: "[using] Blender (creative)",
		},
		{
			name: "app activity defaults",
			ev:   Event{Kind: KindAppActivity, Payload: GenericPayload{EventKind: KindAppActivity}},
			want: "[using] Unknown (unknown)",
		},
		{
			name: "location",
			ev:   Event{Kind: KindLocation, Payload: LocationPayload{X: 120, Y: 44, Z: 1}},
			want: "[at] 120, 44, 1",
		},
		{
			name: "location defaults",
			ev:   Event{Kind: KindLocation, Payload: GenericPayload{EventKind: KindLocation}},
			want: "[at] 0, 0, 0",
		},
		{
			name: "fallback with sorted fields",
			ev: Event{Kind: Kind("mood"), Payload: GenericPayload{
				EventKind: Kind("mood"),
				Values:    map[string]string{"level": "7", "feeling": "sleepy"},
			}},
			want: "[mood] feeling=sleepy, level=7",
		},
		{
			name: "fallback truncated to sixty runes",
			ev: Event{Kind: Kind("story"), Payload: GenericPayload{
				EventKind: Kind("story"),
				Values:    map[string]string{"text": strings.Repeat("x", 80)},
			}},
			want: "[story] text=" + strings.Repeat("x", 55),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEventLine(tt.ev))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "abc", truncateRunes("abcde", 3))
	assert.Equal(t, "żół", truncateRunes("żółty", 3))
}
