package lexical

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// snippet picks the chunk matching the most distinct query terms (earliest
// on ties) and cuts an excerpt of at most maxLen characters around the first
// match, on word boundaries.
func snippet(chunks []chunkEntry, terms []string, maxLen int) string {
	best, bestHits := -1, 0
	for i, c := range chunks {
		hits := 0
		for _, t := range terms {
			if c.freq[t] > 0 {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	if best < 0 {
		if len(chunks) == 0 {
			return ""
		}
		best = 0
	}

	words := strings.Fields(chunks[best].text)
	joined := strings.Join(words, " ")
	if utf8.RuneCountInString(joined) <= maxLen {
		return joined
	}

	first := 0
	for i, w := range words {
		if matchesAny(w, terms) {
			first = i
			break
		}
	}

	// Start a few words before the first match so it has some context.
	start := first - 3
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	budget := maxLen
	if start > 0 {
		b.WriteString(ellipsis)
		budget -= len(ellipsis)
	}
	budget -= len(ellipsis)
	if budget <= 0 {
		// Too short for ellipses.
		return truncateRunes(joined, maxLen)
	}

	n := 0
	for i := start; i < len(words); i++ {
		w := words[i]
		add := utf8.RuneCountInString(w)
		if n > 0 {
			add++
		}
		if n+add > budget {
			if n == 0 {
				b.WriteString(truncateRunes(w, budget))
			}
			b.WriteString(ellipsis)
			return b.String()
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		n += add
	}
	return b.String()
}

func matchesAny(word string, terms []string) bool {
	for _, tok := range Tokenize(word) {
		for _, t := range terms {
			if tok == t {
				return true
			}
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
