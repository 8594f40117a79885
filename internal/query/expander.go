// Package query implements the retrieval core's query-expansion pipeline:
// mining top BM25 hits for code symbols and prose key terms to augment
// short queries before embedding. It is a near-verbatim port of
// decisiongraph/leann-rs's src/index/query.rs, restructured in the style of
// the teacher's internal/search/patterns.go (package-level compiled regexes,
// initialized once).
package query

import (
	"regexp"
	"sort"
	"strings"
)

// symbolPatterns identify function/struct/class/trait/interface names across
// the languages a retrieved corpus is likely to contain. Each has exactly
// one capture group: the symbol name.
var symbolPatterns = []*regexp.Regexp{
	// Rust
	regexp.MustCompile(`(?:pub\s+)?(?:async\s+)?fn\s+(\w+)`),
	regexp.MustCompile(`(?:pub\s+)?struct\s+(\w+)`),
	regexp.MustCompile(`(?:pub\s+)?enum\s+(\w+)`),
	regexp.MustCompile(`(?:pub\s+)?trait\s+(\w+)`),
	// Python
	regexp.MustCompile(`(?:async\s+)?def\s+(\w+)`),
	regexp.MustCompile(`class\s+(\w+)`),
	// JavaScript/TypeScript
	regexp.MustCompile(`(?:async\s+)?function\s+(\w+)`),
	regexp.MustCompile(`(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?\(`),
	// Go
	regexp.MustCompile(`func\s+(?:\([^)]+\)\s+)?(\w+)`),
	regexp.MustCompile(`type\s+(\w+)\s+(?:struct|interface)`),
	// Java/C#
	regexp.MustCompile(`(?:public|private|protected)?\s*(?:static\s+)?(?:class|interface)\s+(\w+)`),
}

var codeKeywords = map[string]struct{}{
	"let": {}, "const": {}, "var": {}, "fn": {}, "func": {}, "def": {}, "pub": {}, "mut": {}, "impl": {},
	"struct": {}, "enum": {}, "type": {}, "trait": {}, "class": {}, "interface": {}, "async": {},
	"await": {}, "return": {}, "match": {}, "case": {}, "break": {}, "continue": {}, "loop": {},
	"while": {}, "for": {}, "if": {}, "else": {}, "elif": {}, "try": {}, "catch": {}, "throw": {},
	"import": {}, "export": {}, "from": {}, "require": {}, "module": {}, "use": {}, "mod": {},
	"self": {}, "super": {}, "true": {}, "false": {}, "null": {}, "none": {}, "nil": {}, "void": {},
	"int": {}, "str": {}, "bool": {}, "float": {}, "vec": {}, "map": {}, "set": {}, "list": {}, "dict": {},
	"assert": {}, "assert_eq": {}, "println": {}, "print": {}, "printf": {}, "console": {}, "log": {},
}

var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "must", "shall", "can", "need", "dare",
		"ought", "used", "to", "of", "in", "for", "on", "with", "at", "by",
		"from", "as", "into", "through", "during", "before", "after", "above",
		"below", "between", "under", "again", "further", "then", "once", "here",
		"there", "when", "where", "why", "how", "all", "each", "few", "more",
		"most", "other", "some", "such", "no", "nor", "not", "only", "own",
		"same", "so", "than", "too", "very", "just", "and", "but", "if", "or",
		"because", "until", "while", "this", "that", "these", "those", "it",
		"its", "i", "me", "my", "myself", "we", "our", "ours", "ourselves",
		"you", "your", "yours", "yourself", "yourselves", "he", "him", "his",
		"himself", "she", "her", "hers", "herself", "they", "them", "their",
		"theirs", "themselves", "what", "which", "who", "whom", "any", "both",
		"also", "about", "like", "using", "based", "within", "without",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ShouldExpand reports whether a query is short enough (<=3 words) to
// benefit from expansion.
func ShouldExpand(q string) bool {
	return len(strings.Fields(q)) <= 3
}

// isCodeLike reports whether a lowercased token looks like code rather than
// prose: contains an underscore, mixes letters and digits, or is a keyword.
func isCodeLike(term string) bool {
	if strings.Contains(term, "_") {
		return true
	}

	hasDigit, hasLetter := false, false
	for _, r := range term {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	if hasDigit && hasLetter {
		return true
	}

	_, isKeyword := codeKeywords[term]
	return isKeyword
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// extractKeyTerms splits text on non-alphanumeric runs, lowercases, and
// ranks surviving terms (len>=4, not a stopword, not pure digits, not
// code-like) by descending frequency.
func extractKeyTerms(text string, maxTerms int) []string {
	counts := make(map[string]int)
	var order []string

	for _, word := range splitNonAlnum(text) {
		lower := strings.ToLower(word)
		if len(lower) < 4 {
			continue
		}
		if _, stop := stopwords[lower]; stop {
			continue
		}
		if isAllDigits(lower) {
			continue
		}
		if isCodeLike(lower) {
			continue
		}
		if _, seen := counts[lower]; !seen {
			order = append(order, lower)
		}
		counts[lower]++
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	if len(order) > maxTerms {
		order = order[:maxTerms]
	}
	return order
}

func splitNonAlnum(text string) []string {
	isSep := func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}
	return strings.FieldsFunc(text, isSep)
}

// extractCodeSymbols runs every symbolPattern over text, filters names
// shorter than 3 chars or starting with "_"/"test_", and ranks by
// descending frequency.
func extractCodeSymbols(text string, maxSymbols int) []string {
	counts := make(map[string]int)
	var order []string

	for _, pattern := range symbolPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			name := match[1]
			if len(name) < 3 || strings.HasPrefix(name, "_") || strings.HasPrefix(name, "test_") {
				continue
			}
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	if len(order) > maxSymbols {
		order = order[:maxSymbols]
	}
	return order
}

// ExpandFromPassages mines key terms and code symbols from passageTexts,
// combines them (deduplicated against terms already in query), and returns
// "<query> <term1> <term2> ...". Returns query unchanged if no new terms
// survive.
func ExpandFromPassages(queryText string, passageTexts []string, maxExpansionTerms int) string {
	if len(passageTexts) == 0 {
		return queryText
	}

	combined := strings.Join(passageTexts, " ")

	keyTerms := extractKeyTerms(combined, maxExpansionTerms)

	seen := make(map[string]struct{}, len(keyTerms))
	for _, t := range keyTerms {
		seen[t] = struct{}{}
	}
	for _, symbol := range extractCodeSymbols(combined, maxExpansionTerms) {
		lower := strings.ToLower(symbol)
		if _, exists := seen[lower]; !exists {
			keyTerms = append(keyTerms, symbol)
			seen[lower] = struct{}{}
		}
	}

	queryWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(queryText)) {
		queryWords[w] = struct{}{}
	}

	var newTerms []string
	for _, term := range keyTerms {
		if _, inQuery := queryWords[strings.ToLower(term)]; inQuery {
			continue
		}
		newTerms = append(newTerms, term)
		if len(newTerms) >= maxExpansionTerms {
			break
		}
	}

	if len(newTerms) == 0 {
		return queryText
	}
	return queryText + " " + strings.Join(newTerms, " ")
}
