package qa

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstudy-backend/internal/topics"
)

func topic(id, title, content string) topics.Topic {
	return topics.Topic{ID: id, Title: title, Content: content, Type: topics.TypeConcept, Included: true}
}

func TestNormalizeFoldsDiacriticsAndPunctuation(t *testing.T) {
	assert.Equal(t, "que es la insuficiencia cardiaca ", Normalize("Què és la insuficiència cardíaca?"))
	assert.Equal(t, "nino  diagnostico", Normalize("Niño, diagnóstico"))
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"insuficiencia": "insuficienc",
		"cardiology":    "cardi",
		"farmacologics": "farmacolog",
		"clinica":       "clin",
		"sintomes":      "sintom",
		"tumors":        "tumor",
		"cor":           "cor",
		"os":            "os",
		"res":           "res",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestRetrieveMatchesAcrossDiacritics(t *testing.T) {
	candidates := []topics.Topic{
		topic("t1", "Insuficiència cardíaca", "Incapacitat del cor per bombar sang suficient."),
		topic("t2", "Dermatitis atòpica", "Inflamació crònica de la pell."),
	}
	got := Retrieve("Què és la insuficiència cardiaca?", candidates)
	require.NotEmpty(t, got)
	assert.Equal(t, "t1", got[0].Topic.ID)
	assert.Greater(t, got[0].Score, 0.0)
	for _, s := range got {
		assert.NotEqual(t, "t2", s.Topic.ID)
	}
}

func TestRetrieveUsesSynonyms(t *testing.T) {
	candidates := []topics.Topic{topic("t1", "Heart failure", "Reduced cardiac output.")}
	got := Retrieve("Què passa al cor?", candidates)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].Topic.ID)
}

func TestRetrieveNoMatchReturnsEmptyContext(t *testing.T) {
	candidates := []topics.Topic{topic("t1", "Insuficiència cardíaca", "Incapacitat del cor.")}
	got := Retrieve("Quina és la capital de França?", candidates)
	assert.Empty(t, got)
	assert.Equal(t, "", BuildContext(got))
}

func TestRetrieveSkipsExcludedTopics(t *testing.T) {
	excluded := topic("t1", "Insuficiència cardíaca", "")
	excluded.Included = false
	assert.Empty(t, Retrieve("insuficiència cardíaca", []topics.Topic{excluded}))
}

func TestScoreWeights(t *testing.T) {
	kw := Keywords("asma")
	assert.Equal(t, 20.0, Score(kw, topic("a", "Asma", "")))
	assert.Equal(t, 10.0, Score(kw, topic("b", "Broncoasmatic", "")))
	assert.Equal(t, 5.0, Score(kw, topic("c", "", "asma")))
	assert.Equal(t, 2.0, Score(kw, topic("d", "", "broncoasmatic")))

	focus := topic("e", "Asma", "asma")
	focus.DeepFocus = true
	assert.Equal(t, 37.5, Score(kw, focus))
}

func TestRetrieveKeepsTopFiveBestFirst(t *testing.T) {
	var candidates []topics.Topic
	for i := 0; i < 8; i++ {
		candidates = append(candidates, topic(fmt.Sprintf("c%d", i), "Notes", "asma"))
	}
	candidates = append(candidates, topic("title", "Asma", ""))
	focus := topic("focus", "", "asma")
	focus.DeepFocus = true
	candidates = append(candidates, focus)

	got := Retrieve("asma", candidates)
	require.Len(t, got, MaxContextTopics)
	assert.Equal(t, "title", got[0].Topic.ID)
	assert.Equal(t, "focus", got[1].Topic.ID)
	assert.Equal(t, "c0", got[2].Topic.ID)
}

func TestBuildContextFormat(t *testing.T) {
	a := topic("a", "Asma", "Malaltia inflamatòria")
	a.Type = topics.TypeDefinition
	b := topic("b", "Nebulització", "Pas a pas")
	b.Type = topics.TypeProcedure

	got := BuildContext([]ScoredTopic{{Topic: a}, {Topic: b}})
	parts := strings.Split(got, ContextDelimiter)
	require.Len(t, parts, 2)
	assert.Equal(t, "Definició: Asma\nMalaltia inflamatòria", parts[0])
	assert.Equal(t, "Procediment: Nebulització\nPas a pas", parts[1])
}
