package interview

import (
	"regexp"
	"strings"
)

const maxNewKeywordsPerAnswer = 5

var answerStopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"were": true, "been": true, "they": true, "them": true, "then": true,
	"than": true, "when": true, "what": true, "where": true, "which": true,
	"will": true, "would": true, "could": true, "should": true, "about": true,
	"there": true, "their": true, "really": true, "very": true, "just": true,
	"like": true, "also": true, "because": true, "into": true, "over": true,
	"some": true, "more": true, "most": true, "much": true, "many": true,
	"such": true, "only": true, "other": true, "after": true, "before": true,
	"while": true, "during": true, "being": true, "doing": true, "done": true,
	"make": true, "made": true, "used": true, "using": true, "work": true,
	"worked": true, "working": true, "thing": true, "things": true,
	"yeah": true, "okay": true, "well": true, "actually": true, "basically": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+#.-]*`)

// extractAnswerKeywords pulls up to five new topical words out of an
// answer, skipping filler and anything already tracked.
func extractAnswerKeywords(answer string, existing map[string]bool) []string {
	var added []string
	for _, raw := range wordPattern.FindAllString(strings.ToLower(answer), -1) {
		word := strings.Trim(raw, ".-")
		if len(word) <= 3 {
			continue
		}
		if answerStopwords[word] || existing[word] {
			continue
		}
		existing[word] = true
		added = append(added, word)
		if len(added) >= maxNewKeywordsPerAnswer {
			break
		}
	}
	return added
}
