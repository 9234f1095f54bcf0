package grouping

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"notifyd/internal/model"
)

// topTerms is how many weighted terms of each text participate in the
// overlap comparison.
const topTerms = 10

// textSimilarity treats the two texts as a two-document corpus, weighs each
// term by TF-IDF (with +1 smoothing so shared terms keep weight), keeps each
// text's top terms and Jaccard-overlaps the two term sets.
func textSimilarity(a, b string) float64 {
	ta := termFreq(tokenize(a))
	tb := termFreq(tokenize(b))
	return jaccard(topWeighted(ta, tb), topWeighted(tb, ta))
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termFreq(words []string) map[string]float64 {
	tf := map[string]float64{}
	for _, w := range words {
		tf[w]++
	}
	return tf
}

// topWeighted returns doc's highest-TF-IDF terms, using other as the rest of
// the corpus for document frequency.
func topWeighted(doc, other map[string]float64) map[string]struct{} {
	type weighted struct {
		term   string
		weight float64
	}
	terms := make([]weighted, 0, len(doc))
	for term, tf := range doc {
		df := 1.0
		if _, ok := other[term]; ok {
			df = 2.0
		}
		idf := math.Log(1 + 2/df)
		terms = append(terms, weighted{term: term, weight: tf * idf})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].weight != terms[j].weight {
			return terms[i].weight > terms[j].weight
		}
		return terms[i].term < terms[j].term
	})
	if len(terms) > topTerms {
		terms = terms[:topTerms]
	}
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		out[t.term] = struct{}{}
	}
	return out
}

// jaccard of two sets. Empty sets carry no evidence and score 0.
func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func stringSet(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

func categoryTitle(n int, cat model.Category) string {
	switch cat {
	case model.CategoryMessage:
		return plural(n, "message")
	case model.CategoryAlert:
		return plural(n, "alert")
	case model.CategoryReminder:
		return plural(n, "reminder")
	case model.CategoryUpdate:
		return plural(n, "update")
	case model.CategorySocial:
		return plural(n, "social update")
	case model.CategorySystem:
		return plural(n, "system notification")
	default:
		return plural(n, "notification")
	}
}
