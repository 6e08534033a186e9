package rank

import (
	"sort"
	"strings"
	"unicode"

	"telecast/models"

	"github.com/mozillazg/go-unidecode"
)

// ByRelevance orders a page of search results so the closest matches to the
// query come first. Items are scored against the query and sorted by score;
// ties keep the store's original ordering.
func ByRelevance(items []models.ContentItem, query string) {
	q := normalize(query)
	if q == "" {
		return
	}
	type scored struct {
		item  models.ContentItem
		score float64
	}
	ranked := make([]scored, len(items))
	for i, item := range items {
		ranked[i] = scored{item: item, score: Score(item.Name, q)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	for i, r := range ranked {
		items[i] = r.item
	}
}

// Score rates how well a catalog name matches an already-normalized query,
// from 0.0 (unrelated) to 1.0 (exact). Provider listings usually prefix names
// with tags ("EN| Heat", "4K - Heat"), so a query contained at a word
// boundary scores nearly as high as an exact match.
func Score(name, normalizedQuery string) float64 {
	n := normalize(name)
	q := normalizedQuery

	if n == q {
		return 1.0
	}
	if len(n) == 0 || len(q) == 0 {
		return 0.0
	}

	if score := containmentScore(n, q); score > 0 {
		return score
	}

	distance := levenshtein(n, q)
	maxLen := len(n)
	if len(q) > maxLen {
		maxLen = len(q)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// containmentScore returns a high score when the query appears whole inside
// the name at word boundaries, scaled by how much of the name it covers. A
// tagged listing like "EN| Heat" scores above a loosely related "Heat Wave 2".
func containmentScore(name, query string) float64 {
	idx := strings.Index(name, query)
	if idx < 0 {
		return 0
	}
	if idx > 0 && name[idx-1] != ' ' {
		return 0
	}
	end := idx + len(query)
	if end < len(name) && name[end] != ' ' {
		return 0
	}
	ratio := float64(len(query)) / float64(len(name))
	return 0.80 + ratio*0.19
}

// normalize lowercases, transliterates accents, maps "&" to "and", and strips
// punctuation so "Amélie" and "amelie" or "Me & You" and "Me and You" compare
// equal. Mirrors the normalization applied to the stored search text.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = unidecode.Unidecode(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == '|':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func levenshtein(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
