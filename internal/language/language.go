package language

import "strings"

type entry struct {
	code    string // OpenSubtitles code
	iso3    string // ISO 639-2/T
	alt3    string // ISO 639-2/B where it differs
	display string
	names   []string
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "castilian"}},
	{"fr", "fra", "fre", "French", []string{"french"}},
	{"de", "deu", "ger", "German", []string{"german"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt-pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"pt-br", "", "", "Portuguese (Brazil)", []string{"brazilian", "brazilian portuguese"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch", "flemish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh-cn", "zho", "chi", "Chinese (Simplified)", []string{"chinese", "simplified chinese"}},
	{"zh-tw", "", "", "Chinese (Traditional)", []string{"traditional chinese"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code] = e
		for _, k := range []string{e.iso3, e.alt3} {
			if k != "" {
				m[k] = e
			}
		}
		for _, n := range e.names {
			m[n] = e
		}
	}
	// Bare codes that OpenSubtitles only knows in regional form.
	m["pt"] = m["pt-pt"]
	m["zh"] = m["zh-cn"]
	return m
}()

func clean(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "_", "-")
}

// Normalize returns the OpenSubtitles code for code, or "" when code is not
// a usable language. Unknown two-letter codes pass through unchanged, as do
// unknown region variants of them ("en-gb").
func Normalize(code string) string {
	code = clean(code)
	if code == "" {
		return ""
	}
	if e, ok := index[code]; ok {
		return e.code
	}
	base, region, hasRegion := strings.Cut(code, "-")
	if len(base) != 2 || !isLetters(base) {
		return ""
	}
	if hasRegion {
		if region == "" || !isLetters(region) {
			return ""
		}
		return base + "-" + region
	}
	return base
}

// Base returns the primary subtag of a normalized code ("pt-br" -> "pt").
func Base(code string) string {
	base, _, _ := strings.Cut(Normalize(code), "-")
	return base
}

// Matches reports whether a and b name the same base language.
func Matches(a, b string) bool {
	ba := Base(a)
	return ba != "" && ba == Base(b)
}

// DisplayName returns a readable name for code. Unknown codes are upper-cased.
func DisplayName(code string) string {
	code = clean(code)
	if code == "" {
		return "Unknown"
	}
	if e, ok := index[code]; ok {
		return e.display
	}
	return strings.ToUpper(code)
}

// NormalizeList normalizes, drops unusable entries and deduplicates while
// keeping the caller's preference order.
func NormalizeList(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		n := Normalize(c)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
