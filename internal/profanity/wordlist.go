package profanity

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"muteguard/internal/services"
)

//go:embed wordlist.yaml
var builtinWordList []byte

type wordListFile struct {
	Words []wordListEntry `yaml:"words"`
}

type wordListEntry struct {
	Word     string `yaml:"word"`
	Level    string `yaml:"level"`
	Severity string `yaml:"severity"`
}

type wordRule struct {
	word     string
	level    Level
	severity Severity
	pattern  *regexp.Regexp
}

// WordListFilter is the default Filter. Each word carries the lowest level at
// which it is filtered, so detections grow monotonically with the level.
type WordListFilter struct {
	rules []wordRule
	mask  rune
}

// NewBuiltinFilter loads the embedded word list.
func NewBuiltinFilter(mask rune) (*WordListFilter, error) {
	return parseWordList(builtinWordList, mask)
}

// LoadWordListFilter reads a YAML word list from path. An empty path selects
// the embedded list.
func LoadWordListFilter(path string, mask rune) (*WordListFilter, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewBuiltinFilter(mask)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profanity", "load word list", path, err)
	}
	return parseWordList(data, mask)
}

func parseWordList(data []byte, mask rune) (*WordListFilter, error) {
	var file wordListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "profanity", "parse word list", "", err)
	}
	if mask == 0 {
		mask = '*'
	}
	filter := &WordListFilter{mask: mask}
	for i, entry := range file.Words {
		word := strings.ToLower(strings.TrimSpace(entry.Word))
		if word == "" || word == "*" {
			return nil, services.Wrap(services.ErrConfiguration, "profanity", "parse word list", fmt.Sprintf("entry %d has no word", i+1), nil)
		}
		level, err := ParseLevel(entry.Level)
		if err != nil || level == LevelNone {
			return nil, services.Wrap(services.ErrConfiguration, "profanity", "parse word list", fmt.Sprintf("entry %q needs a level of MILD, MODERATE or STRICT", word), nil)
		}
		severity := SeverityLow
		if strings.TrimSpace(entry.Severity) != "" {
			if severity, err = ParseSeverity(entry.Severity); err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "profanity", "parse word list", fmt.Sprintf("entry %q", word), err)
			}
		}
		filter.rules = append(filter.rules, wordRule{
			word:     word,
			level:    level,
			severity: severity,
			pattern:  compileWord(word),
		})
	}
	// Longer words first so "motherfucker" is not masked piecemeal.
	sort.SliceStable(filter.rules, func(i, j int) bool {
		return len(filter.rules[i].word) > len(filter.rules[j].word)
	})
	return filter, nil
}

func compileWord(word string) *regexp.Regexp {
	stem := strings.TrimSuffix(word, "*")
	expr := regexp.QuoteMeta(stem)
	expr = strings.ReplaceAll(expr, " ", `\s+`)
	if strings.HasSuffix(word, "*") {
		expr += `[\p{L}']*`
	}
	return regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(` + expr + `)($|[^\p{L}\p{N}])`)
}

func maskWord(word string, mask rune) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		return mask
	}, word)
}

// Size returns the number of rules loaded.
func (f *WordListFilter) Size() int { return len(f.rules) }

// FilterText masks every word whose level is at or below level.
func (f *WordListFilter) FilterText(ctx context.Context, text string, level Level) (FilterResult, error) {
	if err := ctx.Err(); err != nil {
		return FilterResult{}, err
	}
	if !level.Valid() {
		return FilterResult{}, fmt.Errorf("invalid filter level %d", int(level))
	}
	result := FilterResult{Text: text}
	if level == LevelNone || text == "" {
		return result, nil
	}
	detected := make(map[string]struct{})
	for _, rule := range f.rules {
		if rule.level > level {
			continue
		}
		result.Text = replaceAllWords(rule.pattern, result.Text, func(match string) string {
			detected[strings.ToLower(match)] = struct{}{}
			return maskWord(match, f.mask)
		})
	}
	for word := range detected {
		result.Detected = append(result.Detected, word)
	}
	sort.Strings(result.Detected)
	return result, nil
}

// Classify returns the highest severity among every listed word in text.
func (f *WordListFilter) Classify(ctx context.Context, text string) (Severity, error) {
	if err := ctx.Err(); err != nil {
		return SeverityNone, err
	}
	best := SeverityNone
	for _, rule := range f.rules {
		if rule.severity > best && rule.pattern.MatchString(text) {
			best = rule.severity
		}
	}
	return best, nil
}

// replaceAllWords substitutes group 2 of every match. The boundary groups
// consume one rune each, so the scan repeats until nothing changes to catch
// adjacent matches such as "damn damn".
func replaceAllWords(pattern *regexp.Regexp, text string, replace func(string) string) string {
	for {
		changed := false
		text = pattern.ReplaceAllStringFunc(text, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			if len(sub) < 4 || sub[2] == "" {
				return match
			}
			changed = true
			return sub[1] + replace(sub[2]) + sub[3]
		})
		if !changed {
			return text
		}
	}
}
