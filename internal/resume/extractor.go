// Package resume pulls interview-ready signals out of raw resume text:
// the candidate's name and a set of tagged talking points the interviewer
// can anchor questions on.
package resume

import (
	"regexp"
	"strings"
)

const (
	maxTalkingPoints    = 40
	dedupePrefixLen     = 40
	nameScanLines       = 15
	headingBlockMaxRows = 5
)

var (
	actionVerbPattern = regexp.MustCompile(`(?i)\b(built|developed|created|designed|implemented|worked on|contributed to|led|managed|launched|deployed)\b`)
	bulletPrefix      = regexp.MustCompile(`^[\s]*[•●▪‣*-]\s+`)
	pipePairPattern   = regexp.MustCompile(`^[^|]{2,60}\|[^|]{2,60}(\|[^|]{2,60})?$`)
	experienceHeading = regexp.MustCompile(`(?i)^(work\s+)?(experience|employment( history)?|professional background)\s*:?\s*$`)
	skillsHeading     = regexp.MustCompile(`(?i)^(technical\s+)?(skills?|tools?|technologies|tech stack)\s*:?\s*$`)
	skillSplitter     = regexp.MustCompile(`[,;•|]`)

	nameSkipPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^resume$`),
		regexp.MustCompile(`(?i)^curriculum vitae$`),
		regexp.MustCompile(`(?i)^cv$`),
		regexp.MustCompile(`(?i)^biodata$`),
		regexp.MustCompile(`(?i)^profile$`),
		regexp.MustCompile(`(?i)^summary$`),
		regexp.MustCompile(`(?i)^objective$`),
		regexp.MustCompile(`(?i)^experience$`),
		regexp.MustCompile(`(?i)^education$`),
		regexp.MustCompile(`(?i)^skills?$`),
		regexp.MustCompile(`(?i)^page \d+`),
		regexp.MustCompile(`^\d+$`),
		regexp.MustCompile(`^[-–—\s]+$`),
	}
	digitPattern     = regexp.MustCompile(`\d`)
	separatorPattern = regexp.MustCompile(`[/\\,;:|#]`)
	// Latin with diacritics plus the major Indic blocks; dots and
	// apostrophes cover initials and names like O'Brien.
	nameWordPattern = regexp.MustCompile(`^[A-Za-z\x{00C0}-\x{024F}\x{0900}-\x{0D7F}.']+$`)
)

// ExtractCandidateName scans the top of the resume for a line that looks
// like a person's name. Returns "" when nothing qualifies; callers
// substitute their own default.
func ExtractCandidateName(resumeText string) string {
	lines := topNonBlankLines(resumeText, nameScanLines)
	for _, line := range lines {
		if isLikelyName(line) {
			return line
		}
	}
	return ""
}

func isLikelyName(line string) bool {
	if len(line) < 2 || len(line) > 40 {
		return false
	}
	lower := strings.ToLower(line)
	if strings.Contains(lower, "@") || strings.Contains(lower, "http") || strings.Contains(lower, "www.") {
		return false
	}
	for _, re := range nameSkipPatterns {
		if re.MatchString(line) {
			return false
		}
	}
	if digitPattern.MatchString(line) || separatorPattern.MatchString(line) {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 1 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if !nameWordPattern.MatchString(w) {
			return false
		}
		cleaned := strings.Trim(w, ".'")
		if len(cleaned) < 2 || len(cleaned) > 20 {
			return false
		}
	}
	return true
}

// pointRule produces tagged talking points from the resume lines.
type pointRule struct {
	tag   string
	apply func(lines []string) []string
}

var pointRules = []pointRule{
	{tag: "[Project]", apply: actionVerbLines},
	{tag: "[Company Experience]", apply: companyRolePairs},
	{tag: "[Experience]", apply: bulletedLines},
	{tag: "[Experience]", apply: experienceBlockLines},
	{tag: "[Software/Tool]", apply: skillItems},
}

// ExtractTalkingPoints runs the rule table over the resume and returns
// tagged, deduplicated talking points, at most 40.
func ExtractTalkingPoints(resumeText string) []string {
	lines := allNonBlankLines(resumeText)

	points := make([]string, 0, maxTalkingPoints)
	seen := make(map[string]bool)
	for _, rule := range pointRules {
		for _, raw := range rule.apply(lines) {
			text := strings.TrimSpace(raw)
			if text == "" {
				continue
			}
			key := dedupeKey(text)
			if seen[key] {
				continue
			}
			seen[key] = true
			points = append(points, rule.tag+" "+text)
			if len(points) >= maxTalkingPoints {
				return points
			}
		}
	}
	return points
}

func dedupeKey(text string) string {
	key := strings.ToLower(text)
	if len(key) > dedupePrefixLen {
		key = key[:dedupePrefixLen]
	}
	return key
}

func actionVerbLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		clean := bulletPrefix.ReplaceAllString(line, "")
		if len(clean) < 20 || len(clean) > 220 {
			continue
		}
		if actionVerbPattern.MatchString(clean) {
			out = append(out, clean)
		}
	}
	return out
}

func bulletedLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if !bulletPrefix.MatchString(line) {
			continue
		}
		clean := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if len(clean) >= 15 && len(clean) <= 220 {
			out = append(out, clean)
		}
	}
	return out
}

func companyRolePairs(lines []string) []string {
	var out []string
	for _, line := range lines {
		if !strings.Contains(line, "|") {
			continue
		}
		if pipePairPattern.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}

// experienceBlockLines takes up to five lines following an experience
// heading; resumes front-load their strongest entries there.
func experienceBlockLines(lines []string) []string {
	var out []string
	for i, line := range lines {
		if !experienceHeading.MatchString(line) {
			continue
		}
		for j := i + 1; j < len(lines) && j <= i+headingBlockMaxRows; j++ {
			next := lines[j]
			if experienceHeading.MatchString(next) || skillsHeading.MatchString(next) {
				break
			}
			clean := strings.TrimSpace(bulletPrefix.ReplaceAllString(next, ""))
			if len(clean) >= 15 && len(clean) <= 220 {
				out = append(out, clean)
			}
		}
	}
	return out
}

func skillItems(lines []string) []string {
	var out []string
	for i, line := range lines {
		if !skillsHeading.MatchString(line) {
			continue
		}
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			next := lines[j]
			if experienceHeading.MatchString(next) || skillsHeading.MatchString(next) {
				break
			}
			for _, item := range skillSplitter.Split(next, -1) {
				item = strings.TrimSpace(item)
				if len(item) < 2 || len(item) > 40 {
					continue
				}
				if len(strings.Fields(item)) > 4 {
					continue
				}
				out = append(out, item)
			}
		}
	}
	return out
}

func topNonBlankLines(text string, n int) []string {
	lines := allNonBlankLines(text)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

func allNonBlankLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
