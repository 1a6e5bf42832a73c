package memory

import (
	"strconv"
	"time"
)

// Kind identifies the category of an observed event
type Kind string

const (
	KindChat        Kind = "chat"
	KindVision      Kind = "vision"
	KindAppActivity Kind = "app_activity"
	KindLocation    Kind = "location"
	KindInventory   Kind = "inventory"
	KindSkill       Kind = "skill"
	KindPreference  Kind = "preference"
)

// archiveDateFormat keys archive buckets by local calendar day
const archiveDateFormat = "2006-01-02"

// Payload carries the kind-specific content of an event
type Payload interface {
	Kind() Kind
	Fields() map[string]string
}

// ChatPayload is a single utterance from the user or the companion
type ChatPayload struct {
	Who  string
	Text string
}

func (p ChatPayload) Kind() Kind { return KindChat }

func (p ChatPayload) Fields() map[string]string {
	return map[string]string{"who": p.Who, "text": p.Text}
}

// VisionPayload describes something the companion noticed on screen
type VisionPayload struct {
	Summary string
	Path    string
}

func (p VisionPayload) Kind() Kind { return KindVision }

func (p VisionPayload) Fields() map[string]string {
	return map[string]string{"summary": p.Summary, "path": p.Path}
}

// AppActivityPayload records which application the user is working in
type AppActivityPayload struct {
	App       string
	Category  string
	Surprised bool
	Curious   bool
}

func (p AppActivityPayload) Kind() Kind { return KindAppActivity }

func (p AppActivityPayload) Fields() map[string]string {
	return map[string]string{
		"app":       p.App,
		"category":  p.Category,
		"surprised": strconv.FormatBool(p.Surprised),
		"curious":   strconv.FormatBool(p.Curious),
	}
}

// LocationPayload is the companion's position on the desktop grid
type LocationPayload struct {
	X int
	Y int
	Z int
}

func (p LocationPayload) Kind() Kind { return KindLocation }

func (p LocationPayload) Fields() map[string]string {
	return map[string]string{
		"x": strconv.Itoa(p.X),
		"y": strconv.Itoa(p.Y),
		"z": strconv.Itoa(p.Z),
	}
}

// InventoryPayload tracks items the companion has gained or lost
type InventoryPayload struct {
	Item   string
	Count  int
	Action string
}

func (p InventoryPayload) Kind() Kind { return KindInventory }

func (p InventoryPayload) Fields() map[string]string {
	return map[string]string{
		"item":   p.Item,
		"count":  strconv.Itoa(p.Count),
		"action": p.Action,
	}
}

// SkillPayload records progress on a learned skill
type SkillPayload struct {
	Name  string
	Level int
}

func (p SkillPayload) Kind() Kind { return KindSkill }

func (p SkillPayload) Fields() map[string]string {
	return map[string]string{
		"name":  p.Name,
		"level": strconv.Itoa(p.Level),
	}
}

// PreferencePayload captures a stated like or dislike of the user
type PreferencePayload struct {
	Topic     string
	Sentiment string
}

func (p PreferencePayload) Kind() Kind { return KindPreference }

func (p PreferencePayload) Fields() map[string]string {
	return map[string]string{
		"topic":     p.Topic,
		"sentiment": p.Sentiment,
	}
}

// GenericPayload holds events of kinds the store has no dedicated type for
type GenericPayload struct {
	EventKind Kind
	Values    map[string]string
}

func (p GenericPayload) Kind() Kind { return p.EventKind }

func (p GenericPayload) Fields() map[string]string {
	out := make(map[string]string, len(p.Values))
	for k, v := range p.Values {
		out[k] = v
	}
	return out
}

// NewPayload builds a typed payload from a kind name and a flat field map.
// Unknown kinds fall back to GenericPayload; numeric and boolean fields
// that fail to parse are left at their zero values.
func NewPayload(kind Kind, fields map[string]string) Payload {
	switch kind {
	case KindChat:
		return ChatPayload{Who: fields["who"], Text: fields["text"]}
	case KindVision:
		return VisionPayload{Summary: fields["summary"], Path: fields["path"]}
	case KindAppActivity:
		surprised, _ := strconv.ParseBool(fields["surprised"])
		curious, _ := strconv.ParseBool(fields["curious"])
		return AppActivityPayload{
			App:       fields["app"],
			Category:  fields["category"],
			Surprised: surprised,
			Curious:   curious,
		}
	case KindLocation:
		x, _ := strconv.Atoi(fields["x"])
		y, _ := strconv.Atoi(fields["y"])
		z, _ := strconv.Atoi(fields["z"])
		return LocationPayload{X: x, Y: y, Z: z}
	case KindInventory:
		count, _ := strconv.Atoi(fields["count"])
		return InventoryPayload{Item: fields["item"], Count: count, Action: fields["action"]}
	case KindSkill:
		level, _ := strconv.Atoi(fields["level"])
		return SkillPayload{Name: fields["name"], Level: level}
	case KindPreference:
		return PreferencePayload{Topic: fields["topic"], Sentiment: fields["sentiment"]}
	default:
		values := make(map[string]string, len(fields))
		for k, v := range fields {
			values[k] = v
		}
		return GenericPayload{EventKind: kind, Values: values}
	}
}

// Event is a single observation flowing through the memory tiers
type Event struct {
	ID        string
	Kind      Kind
	Payload   Payload
	Timestamp time.Time
}

// ScoredEvent is an event promoted to the important tier along with
// its current importance, which decays over time
type ScoredEvent struct {
	Event
	Importance float64
}

// DayBucket aggregates the events archived on one calendar day
type DayBucket struct {
	Date           string
	EventCount     int
	FirstTimestamp time.Time
	Events         []Event
	RollingSummary string

	// fragments dedupes chat lines already folded into RollingSummary
	fragments map[string]struct{}
}

// Stats is a point-in-time census of the memory tiers
type Stats struct {
	RecentItems    int     `json:"recent_items"`
	ImportantItems int     `json:"important_items"`
	ArchiveDays    int     `json:"archive_days"`
	TotalEvents    int64   `json:"total_events"`
	MemoryRatio    float64 `json:"memory_ratio"`
}

// Snapshot is a full copy of the store state, suitable for persistence
type Snapshot struct {
	Recent    []Event
	Important []ScoredEvent
	Archive   []DayBucket
	Counter   int64
}
