// Package match implements the Name Matcher: an INI-configured alias
// assignment for series, documented as an external interface in §6 of
// the spec and grounded on original_source/pydcm/match.py's NameMatcher.
// Sections name aliases; a "default" section holds fallbacks. Per alias:
// pattern, days, type, count, series, study, template, ignorecase, tidy.
// Range fields accept "a-b", "a-", "-b", or a bare integer; alias
// matching is first-hit in declaration order over series sorted by
// (stdate+sttime, fixed-width series number).
package match

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/ini.v1"
)

// Range is an inclusive integer range with optionally-open endpoints.
// A nil bound means unbounded on that side.
type Range struct {
	Lo, Hi *int
}

// contains reports whether v falls within r (true for a nil Range).
func (r *Range) contains(v int) bool {
	if r == nil {
		return true
	}
	if r.Lo != nil && v < *r.Lo {
		return false
	}
	if r.Hi != nil && v > *r.Hi {
		return false
	}
	return true
}

// ParseRange parses a range string like "2-3", "10-20", "4-", "-9", or a
// bare "2" (which becomes the single-point range [2,2]).
func ParseRange(text string) (Range, error) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "-") {
		v, err := strconv.Atoi(text)
		if err != nil {
			return Range{}, fmt.Errorf("match: invalid range %q: %w", text, err)
		}
		return Range{Lo: &v, Hi: &v}, nil
	}
	parts := strings.SplitN(text, "-", 2)
	var r Range
	if p := strings.TrimSpace(parts[0]); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Range{}, fmt.Errorf("match: invalid range %q: %w", text, err)
		}
		r.Lo = &v
	}
	if p := strings.TrimSpace(parts[1]); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Range{}, fmt.Errorf("match: invalid range %q: %w", text, err)
		}
		r.Hi = &v
	}
	return r, nil
}

// alias is one configured section's compiled matcher state.
type alias struct {
	name       string
	pattern    glob.Glob
	hasPattern bool
	typ        glob.Glob
	hasType    bool
	days       *Range
	count      *Range
	seriesR    *Range
	study      *Range
	template   string
	ignoreCase bool
	tidy       bool

	matched int
	counted int
}

// Matcher is a loaded Name Matcher configuration, ready to classify a
// batch of series via FindMatches then Match/Template.
type Matcher struct {
	order   []string
	aliases map[string]*alias

	defaultTemplate  string
	defaultIgnoreCase bool
	defaultTidy      bool

	matches map[seriesID]matchResult
}

type seriesID struct {
	studyNo, studyName, seriesNo string
}

type matchResult struct {
	alias string
	count int
}

// Load reads a Name Matcher INI file from path.
func Load(path string) (*Matcher, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("match: loading %s: %w", path, err)
	}

	m := &Matcher{
		aliases:           map[string]*alias{},
		defaultTemplate:   "%(alias)?(-count)?(-t)?(-echo)",
		defaultIgnoreCase: true,
		defaultTidy:       true,
	}

	if def, err := cfg.GetSection("default"); err == nil {
		if def.HasKey("template") {
			m.defaultTemplate = def.Key("template").String()
		}
		if def.HasKey("ignorecase") {
			m.defaultIgnoreCase = def.Key("ignorecase").MustInt(1) != 0
		}
		if def.HasKey("tidy") {
			m.defaultTidy = def.Key("tidy").MustInt(1) != 0
		}
	}

	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || name == "default" {
			continue
		}
		a := &alias{name: name, ignoreCase: m.defaultIgnoreCase, tidy: m.defaultTidy, template: m.defaultTemplate}

		if sec.HasKey("ignorecase") {
			a.ignoreCase = sec.Key("ignorecase").MustInt(1) != 0
		}
		if sec.HasKey("tidy") {
			a.tidy = sec.Key("tidy").MustInt(1) != 0
		}
		if sec.HasKey("template") {
			a.template = sec.Key("template").String()
		}

		if sec.HasKey("pattern") {
			g, err := compileGlob(sec.Key("pattern").String(), a.ignoreCase)
			if err != nil {
				return nil, err
			}
			a.pattern, a.hasPattern = g, true
		}
		if sec.HasKey("type") {
			g, err := compileGlob(sec.Key("type").String(), a.ignoreCase)
			if err != nil {
				return nil, err
			}
			a.typ, a.hasType = g, true
		}
		if sec.HasKey("days") {
			r, err := ParseRange(sec.Key("days").String())
			if err != nil {
				return nil, err
			}
			a.days = &r
		}
		if sec.HasKey("count") {
			r, err := ParseRange(sec.Key("count").String())
			if err != nil {
				return nil, err
			}
			a.count = &r
		}
		if sec.HasKey("series") {
			r, err := ParseRange(sec.Key("series").String())
			if err != nil {
				return nil, err
			}
			a.seriesR = &r
		}
		if sec.HasKey("study") {
			r, err := ParseRange(sec.Key("study").String())
			if err != nil {
				return nil, err
			}
			a.study = &r
		}

		m.aliases[name] = a
		m.order = append(m.order, name)
	}

	return m, nil
}

// compileGlob wraps a configured pattern/type string as a case-sensitive
// or case-insensitive glob.Glob, matching the original's re.search flag.
func compileGlob(pattern string, ignoreCase bool) (glob.Glob, error) {
	if ignoreCase {
		pattern = strings.ToLower(pattern)
	}
	g, err := glob.Compile("*" + pattern + "*")
	if err != nil {
		return nil, fmt.Errorf("match: invalid pattern %q: %w", pattern, err)
	}
	return g, nil
}

func (a *alias) matchString(g glob.Glob, has bool, s string) bool {
	if !has {
		return true
	}
	if a.ignoreCase {
		s = strings.ToLower(s)
	}
	return g.Match(s)
}

// fixSeries zero-pads the leading numeric run of a series key to four
// digits, keeping any trailing suffix, matching the original's fixser:
// "5" -> "0005", "5axi" -> "0005axi".
func fixSeries(sno string) string {
	i := 0
	for i < len(sno) && sno[i] >= '0' && sno[i] <= '9' {
		i++
	}
	numPart := sno[:i]
	rest := sno[i:]
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return sno
	}
	return fmt.Sprintf("%04d%s", n, rest)
}

// SeriesInfo is the subset of an assembled series' identity and metadata
// FindMatches needs, independent of the series package's own Entity
// shape so this package stays a peripheral, not a core-pipeline,
// dependency.
type SeriesInfo struct {
	StudyNo, StudyName string
	SeriesNo           string
	Desc, Type         string
	Date, Time         string
	StudyDate, StudyTime string
}

func digitsOnly(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, _ := strconv.Atoi(b.String())
	return n
}

func dateDiff(d1, d2 string) (int, error) {
	t1, err := time.Parse("20060102", d1)
	if err != nil {
		return 0, fmt.Errorf("match: invalid date %q: %w", d1, err)
	}
	t2, err := time.Parse("20060102", d2)
	if err != nil {
		return 0, fmt.Errorf("match: invalid date %q: %w", d2, err)
	}
	return int(t2.Sub(t1).Hours() / 24), nil
}

func tidyProtoname(desc string) string {
	var b strings.Builder
	for _, r := range desc {
		switch {
		case r == ' ' || r == '/' || r == '^':
			b.WriteByte('_')
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
			strings.ContainsRune(",.;:=%^&()_+-", r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindMatches classifies every series in list against the loaded
// aliases, in alias-declaration order, first match wins per series.
// list is sorted in place by (stdate+sttime, fixed-width series number)
// before matching, matching the original's series_list.sort(order).
func (m *Matcher) FindMatches(list []SeriesInfo) error {
	if len(list) == 0 {
		m.matches = map[seriesID]matchResult{}
		return nil
	}

	sort.SliceStable(list, func(i, j int) bool {
		ai := list[i].StudyDate + list[i].StudyTime
		aj := list[j].StudyDate + list[j].StudyTime
		if ai != aj {
			return ai < aj
		}
		return fixSeries(list[i].SeriesNo) < fixSeries(list[j].SeriesNo)
	})

	baseline := list[0].StudyDate
	m.matches = map[seriesID]matchResult{}

	lastStudy := seriesID{studyNo: list[0].StudyNo, studyName: list[0].StudyName}
	studyCount := 0

	for _, a := range m.aliases {
		a.matched, a.counted = 0, 0
	}

	for _, e := range list {
		this := seriesID{studyNo: e.StudyNo, studyName: e.StudyName}
		if this != lastStudy {
			studyCount++
			lastStudy = this
		}

		for _, name := range m.order {
			a := m.aliases[name]

			desc := e.Desc
			if a.tidy {
				desc = tidyProtoname(desc)
			}
			if !a.matchString(a.pattern, a.hasPattern, desc) {
				continue
			}
			if !a.matchString(a.typ, a.hasType, e.Type) {
				continue
			}
			if a.days != nil {
				age, err := dateDiff(baseline, e.StudyDate)
				if err != nil {
					return err
				}
				if !a.days.contains(age) {
					continue
				}
			}
			if a.study != nil && !a.study.contains(studyCount) {
				continue
			}

			trueCount := a.matched
			offsetCount := trueCount
			a.matched++

			if a.count != nil && !a.count.contains(trueCount) {
				continue
			}
			if a.count != nil && a.count.Lo != nil {
				offsetCount -= *a.count.Lo
			}

			if a.seriesR != nil && !a.seriesR.contains(digitsOnly(e.SeriesNo)) {
				continue
			}

			m.matches[seriesID{e.StudyNo, e.StudyName, e.SeriesNo}] = matchResult{alias: name, count: offsetCount}
			a.counted++
			break
		}
	}
	return nil
}

// Match returns the alias assigned to (studyNo, studyName, seriesNo) and
// whether it matched. ok is false when no alias matched at
// all. When the matched alias fired more than once across the batch, the
// returned count is non-negative and should be used to disambiguate
// output names; otherwise count is -1.
func (m *Matcher) Match(studyNo, studyName, seriesNo string) (aliasName string, count int, ok bool) {
	res, present := m.matches[seriesID{studyNo, studyName, seriesNo}]
	if !present {
		return "", -1, false
	}
	if m.aliases[res.alias].counted <= 1 {
		return res.alias, -1, true
	}
	return res.alias, res.count, true
}

// Template returns the output filename template for (studyNo, studyName,
// seriesNo): the matched alias's own template, or the configured default
// when there is no match or the alias has none of its own.
func (m *Matcher) Template(studyNo, studyName, seriesNo string) string {
	res, ok := m.matches[seriesID{studyNo, studyName, seriesNo}]
	if !ok {
		return m.defaultTemplate
	}
	return m.aliases[res.alias].template
}
