package profanity

import (
	"fmt"
	"strings"

	"muteguard/internal/services"
)

// Level is a filter strictness tier. Higher levels filter a superset of the
// words filtered by lower ones.
type Level int

const (
	LevelNone Level = iota
	LevelMild
	LevelModerate
	LevelStrict
)

var levelNames = [...]string{"NONE", "MILD", "MODERATE", "STRICT"}

// AllLevels lists every level in ascending order.
func AllLevels() []Level {
	return []Level{LevelNone, LevelMild, LevelModerate, LevelStrict}
}

func (l Level) String() string {
	if l < LevelNone || l > LevelStrict {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l >= LevelNone && l <= LevelStrict
}

// ParseLevel accepts level names case-insensitively.
func ParseLevel(value string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(value))
	for i, candidate := range levelNames {
		if candidate == name {
			return Level(i), nil
		}
	}
	return LevelNone, services.Wrap(services.ErrValidation, "profanity", "parse level", fmt.Sprintf("unknown filter level %q", value), nil)
}

// ParseLevels parses and de-duplicates a list, preserving order.
func ParseLevels(values []string) ([]Level, error) {
	seen := make(map[Level]struct{}, len(values))
	out := make([]Level, 0, len(values))
	for _, v := range values {
		level, err := ParseLevel(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[level]; ok {
			continue
		}
		seen[level] = struct{}{}
		out = append(out, level)
	}
	return out, nil
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid filter level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Severity grades how much profanity a piece of dialogue carries.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

var severityNames = [...]string{"NONE", "LOW", "MEDIUM", "HIGH"}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityHigh {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity accepts severity names case-insensitively.
func ParseSeverity(value string) (Severity, error) {
	name := strings.ToUpper(strings.TrimSpace(value))
	for i, candidate := range severityNames {
		if candidate == name {
			return Severity(i), nil
		}
	}
	return SeverityNone, services.Wrap(services.ErrValidation, "profanity", "parse severity", fmt.Sprintf("unknown severity %q", value), nil)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SeverityForRatio grades the share of dialogue entries that carried
// profanity: at least 15% is HIGH, 8% MEDIUM, 2% LOW.
func SeverityForRatio(events, entries int) Severity {
	if events <= 0 || entries <= 0 {
		return SeverityNone
	}
	ratio := float64(events) / float64(entries)
	switch {
	case ratio >= 0.15:
		return SeverityHigh
	case ratio >= 0.08:
		return SeverityMedium
	case ratio >= 0.02:
		return SeverityLow
	default:
		return SeverityNone
	}
}
