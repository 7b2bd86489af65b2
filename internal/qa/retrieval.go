package qa

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"medstudy-backend/internal/topics"
)

// Retrieval tuning.
const (
	MaxContextTopics = 5
	ContextDelimiter = "\n\n---\n\n"

	titleExactWeight     = 20
	titleSubstringWeight = 10
	contentExactWeight   = 5
	contentSubWeight     = 2
	deepFocusMultiplier  = 1.5

	minTokenLen = 2
	minStemLen  = 3
)

// Longest suffix first; only the first match is stripped.
var suffixes = []string{"ology", "iques", "ical", "ics", "ica", "ico", "ia", "es", "s"}

// Common words that would otherwise match almost every topic by substring.
var stopwords = mapset.NewSet(
	"de", "del", "dels", "la", "les", "el", "els", "lo", "los", "las", "un", "una", "uns", "unes", "uno",
	"en", "amb", "per", "que", "com", "quin", "quina", "es", "son", "al", "als", "se", "si", "no",
	"y", "o", "i", "con", "para", "por", "cual", "como", "the", "of", "and", "or", "to", "in", "is",
	"what", "how", "which", "an", "are", "on", "for", "with",
)

// synonymGroups maps equivalent medical terms across Catalan, Spanish and
// English. Entries are folded and stemmed at init.
var synonymGroups = [][]string{
	{"cor", "heart", "cardiac", "cardiaca", "cardiaco", "corazon", "cardio", "cardiologia", "cardiology"},
	{"cervell", "brain", "cerebro", "cerebral", "neurologia", "neurology", "neurologic"},
	{"nervi", "nervio", "nerve", "nerviós", "nervioso", "nervous"},
	{"pulmo", "pulmó", "lung", "pulmon", "pulmonar", "pulmonary", "respiratori", "respiratorio", "respiratory"},
	{"ronyo", "ronyó", "kidney", "riñon", "riñón", "renal"},
	{"fetge", "liver", "higado", "hígado", "hepatic", "hepatico", "hepàtic"},
	{"pell", "skin", "piel", "cutani", "cutaneo", "cutaneous", "dermatologia", "dermatology"},
	{"sang", "blood", "sangre", "hematologia", "hematology"},
	{"os", "ossos", "bone", "hueso", "huesos", "oseo", "ossi"},
	{"nen", "nens", "nino", "niño", "child", "children", "pediatria", "pediatrics", "infant"},
	{"cancer", "càncer", "cáncer", "tumor", "tumour", "neoplasia", "oncologia", "oncology"},
	{"diabetis", "diabetes", "diabetic", "diabètic", "diabetico"},
	{"hipertensio", "hipertensió", "hipertension", "hipertensión", "hypertension"},
	{"infeccio", "infecció", "infeccion", "infección", "infection"},
	{"dolor", "pain"},
	{"febre", "fiebre", "fever"},
	{"tractament", "tratamiento", "treatment", "terapia", "therapy"},
	{"diagnostic", "diagnòstic", "diagnostico", "diagnóstico", "diagnosis"},
	{"simptoma", "símptoma", "sintoma", "síntoma", "symptom"},
	{"insuficiencia", "insuficiència", "failure", "fallo"},
	{"cirurgia", "cirugia", "cirugía", "surgery", "quirurgic", "quirúrgic", "quirurgico"},
	{"medicament", "medicamento", "farmac", "fàrmac", "farmaco", "fármaco", "drug", "medication"},
}

var synonymIndex = buildSynonymIndex(synonymGroups)

func buildSynonymIndex(groups [][]string) map[string]mapset.Set[string] {
	index := make(map[string]mapset.Set[string])
	for _, group := range groups {
		bucket := mapset.NewThreadUnsafeSet[string]()
		for _, word := range group {
			for _, tok := range tokenize(word) {
				bucket.Add(tok)
			}
		}
		for _, stem := range bucket.ToSlice() {
			if existing, ok := index[stem]; ok {
				existing.Append(bucket.ToSlice()...)
				continue
			}
			index[stem] = bucket.Clone()
		}
	}
	return index
}

// Normalize lowercases s, strips diacritics and replaces punctuation with spaces.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, folded)
}

// Stem strips one known suffix when enough of the word remains.
func Stem(word string) string {
	for _, suffix := range suffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		base := strings.TrimSuffix(word, suffix)
		if utf8.RuneCountInString(base) >= minStemLen {
			return base
		}
		return word
	}
	return word
}

// tokenize returns the stemmed tokens of s, dropping short tokens and stopwords.
func tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLen || stopwords.Contains(f) {
			continue
		}
		out = append(out, Stem(f))
	}
	return out
}

// Keywords returns the question's stemmed tokens expanded through the
// synonym table.
func Keywords(question string) mapset.Set[string] {
	keywords := mapset.NewThreadUnsafeSet[string]()
	for _, tok := range tokenize(question) {
		keywords.Add(tok)
		if bucket, ok := synonymIndex[tok]; ok {
			keywords = keywords.Union(bucket)
		}
	}
	return keywords
}

// ScoredTopic is a topic selected as context.
type ScoredTopic struct {
	Topic topics.Topic
	Score float64
}

// Score rates one topic against the keyword set.
func Score(keywords mapset.Set[string], t topics.Topic) float64 {
	titleText := Normalize(t.Title)
	contentText := Normalize(t.Content)
	titleWords := mapset.NewThreadUnsafeSet(tokenize(t.Title)...)
	contentWords := mapset.NewThreadUnsafeSet(tokenize(t.Content)...)

	total := 0
	keywords.Each(func(k string) bool {
		switch {
		case titleWords.Contains(k):
			total += titleExactWeight
		case strings.Contains(titleText, k):
			total += titleSubstringWeight
		}
		switch {
		case contentWords.Contains(k):
			total += contentExactWeight
		case strings.Contains(contentText, k):
			total += contentSubWeight
		}
		return false
	})
	score := float64(total)
	if t.DeepFocus {
		score *= deepFocusMultiplier
	}
	return score
}

// Retrieve scores the included topics against question and returns at most
// MaxContextTopics with a positive score, best first. Ties keep input order.
func Retrieve(question string, candidates []topics.Topic) []ScoredTopic {
	keywords := Keywords(question)
	if keywords.Cardinality() == 0 {
		return nil
	}
	var scored []ScoredTopic
	for _, t := range candidates {
		if !t.Included {
			continue
		}
		if s := Score(keywords, t); s > 0 {
			scored = append(scored, ScoredTopic{Topic: t, Score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > MaxContextTopics {
		scored = scored[:MaxContextTopics]
	}
	return scored
}

// BuildContext renders the selected topics as the prompt context block.
func BuildContext(selected []ScoredTopic) string {
	parts := make([]string, 0, len(selected))
	for _, s := range selected {
		parts = append(parts, s.Topic.Type.Label()+": "+s.Topic.Title+"\n"+s.Topic.Content)
	}
	return strings.Join(parts, ContextDelimiter)
}
