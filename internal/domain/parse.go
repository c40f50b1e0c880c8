package domain

import (
	"regexp"
	"strings"
)

// Municipalities is the closed vocabulary the BVK grammar keys on. The
// source always writes them in Cyrillic, followed by a colon.
var Municipalities = []string{
	"Стари град", "Савски венац", "Врачар", "Звездара", "Палилула", "Вождовац",
	"Чукарица", "Раковица", "Нови Београд", "Земун", "Гроцка", "Барајево",
	"Сурчин", "Сопот", "Младеновац", "Обреновац", "Лазаревац",
}

// stopMarkers cut off trailing panel furniture: the water-tanker schedule
// and share widgets that follow the outage list in the same content block.
var stopMarkers = []string{
	"Распоред аутоцистерни",
	"Распоред цистерни",
	"Подели садржај",
	"Подели на",
	"Share on",
	"Podeli",
}

// punctCutset is what address fragments are trimmed of: commas, semicolons,
// and both ASCII and en-dash forms.
const punctCutset = " ,;–-"

var (
	untilRe = regexp.MustCompile(`(?i)До\s+(\d{1,2})[:.](\d{2})`)

	municipalityRe = func() *regexp.Regexp {
		quoted := make([]string, len(Municipalities))
		for i, m := range Municipalities {
			quoted[i] = regexp.QuoteMeta(m)
		}
		return regexp.MustCompile(`(` + strings.Join(quoted, "|") + `)\s*:\s*`)
	}()

	whitespaceRe = regexp.MustCompile(`\s+`)
	enDashRe     = regexp.MustCompile(`\s+–\s+`)
	hyphenRe     = regexp.MustCompile(`\s+-\s+`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	shareTailRe  = regexp.MustCompile(`(?i)(Подели\s+садржај.*)$`)
)

// Record is one parsed incident candidate.
type Record struct {
	Title       string
	Description string
	AddressText string
}

// Parse dispatches to the grammar registered for the source name. Unknown
// sources yield no records.
func Parse(sourceName, text string) []Record {
	if sourceName == "BVK" {
		return ParseBVK(text)
	}
	return nil
}

// ClipOutageRegion keeps only the outages block of a panel: it starts at the
// first "До HH:MM" token or the first municipality marker, whichever comes
// first, and stops at the first stop marker.
func ClipOutageRegion(text string) string {
	s := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))

	start := -1
	if loc := untilRe.FindStringIndex(s); loc != nil {
		start = loc[0]
	}
	if loc := municipalityRe.FindStringIndex(s); loc != nil {
		if start == -1 || loc[0] < start {
			start = loc[0]
		}
	}
	if start == -1 {
		start = 0
	}

	stop := len(s)
	for _, marker := range stopMarkers {
		if idx := strings.Index(s, marker); idx != -1 && idx < stop {
			stop = idx
		}
	}

	clipped := shareTailRe.ReplaceAllString(s[start:stop], "")
	return strings.Trim(clipped, punctCutset)
}

// ParseBVK parses a normalized BVK panel text into incident candidates.
// Municipality markers partition the text into segments; commas split each
// segment into address fragments; internal dash ranges become comma lists.
// A text with no municipality marker parses to nothing: the panel may be
// prose rather than an outage list, which is not an error.
func ParseBVK(text string) []Record {
	s := ClipOutageRegion(text)

	until := ""
	if m := untilRe.FindStringSubmatch(s); m != nil {
		hh := m[1]
		if len(hh) == 1 {
			hh = "0" + hh
		}
		until = hh + ":" + m[2]
	}

	markers := municipalityRe.FindAllStringSubmatchIndex(s, -1)
	if len(markers) == 0 {
		return nil
	}

	var records []Record
	for i, marker := range markers {
		municipality := s[marker[2]:marker[3]]
		segStart := marker[1]
		segEnd := len(s)
		if i+1 < len(markers) {
			segEnd = markers[i+1][0]
		}
		segment := strings.Trim(s[segStart:segEnd], punctCutset)

		for _, fragment := range strings.Split(segment, ",") {
			fragment = strings.Trim(fragment, punctCutset)
			if fragment == "" {
				continue
			}
			fragment = enDashRe.ReplaceAllString(fragment, ", ")
			fragment = hyphenRe.ReplaceAllString(fragment, ", ")
			fragment = strings.Trim(multiSpaceRe.ReplaceAllString(fragment, " "), punctCutset)
			// The sentence dot closing a segment is prose, not address text.
			fragment = strings.Trim(strings.TrimRight(fragment, "."), punctCutset)
			if fragment == "" {
				continue
			}

			title := municipality + ": " + fragment
			description := title
			if until != "" {
				description = "До " + until + " — " + title
			}
			records = append(records, Record{
				Title:       title,
				Description: description,
				AddressText: municipality + ", " + fragment,
			})
		}
	}
	return records
}
