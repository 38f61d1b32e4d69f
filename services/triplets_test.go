package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-triplets/models"
)

func mustParse(t *testing.T, s string) models.Node {
	t.Helper()
	n, err := models.ParseNode([]byte(s))
	require.NoError(t, err)
	return n
}

func values(ts []models.Triplet) [][]any {
	out := make([][]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Values())
	}
	return out
}

func TestFlatten(t *testing.T) {
	t.Run("two levels", func(t *testing.T) {
		n := mustParse(t, `{"Intro":{"main_content":"A","Sub":"B C"}}`)
		assert.Equal(t, [][]any{
			{"Intro", "main_content", "A"},
			{"Intro", "Sub", "B C"},
		}, values(FlattenAll(n)))
	})

	t.Run("list elements share the parent path", func(t *testing.T) {
		n := mustParse(t, `{"k":["x","y"]}`)
		assert.Equal(t, [][]any{{"k", "x"}, {"k", "y"}}, values(FlattenAll(n)))
	})

	t.Run("scalar root", func(t *testing.T) {
		got := FlattenAll(models.Scalar{Value: "only"})
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Path)
		assert.Equal(t, []any{"only"}, got[0].Values())
	})

	t.Run("nested lists and maps", func(t *testing.T) {
		n := mustParse(t, `{"a":[{"b":1},[2,{"c":null}]],"d":true}`)
		assert.Equal(t, [][]any{
			{"a", "b", json.Number("1")},
			{"a", json.Number("2")},
			{"a", "c", nil},
			{"d", true},
		}, values(FlattenAll(n)))
	})

	t.Run("top-level list of scalars", func(t *testing.T) {
		n := mustParse(t, `["x",1]`)
		assert.Equal(t, [][]any{{"x"}, {json.Number("1")}}, values(FlattenAll(n)))
	})

	t.Run("empty containers yield nothing", func(t *testing.T) {
		assert.Empty(t, FlattenAll(mustParse(t, `{}`)))
		assert.Empty(t, FlattenAll(mustParse(t, `{"a":{},"b":[]}`)))
		assert.NotNil(t, FlattenAll(mustParse(t, `[]`)))
	})

	t.Run("section tree", func(t *testing.T) {
		tree := BuildHierarchy([]models.Passage{t1("Intro"), para("A"), t2("Sub"), para("B")}, Normalize)
		assert.Equal(t, [][]any{
			{"Intro", "main_content", "A"},
			{"Intro", "Sub", "B"},
		}, values(FlattenAll(tree.Node())))
	})
}

func TestFlatten_Restartable(t *testing.T) {
	n := mustParse(t, `{"a":"1","b":{"c":"2","d":"3"}}`)
	seq := Flatten(n)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 3, first)
	assert.Equal(t, first, second)
}

func TestFlatten_EarlyStop(t *testing.T) {
	n := mustParse(t, `{"a":{"b":"1","c":"2"},"d":["3","4"]}`)

	var seen []models.Triplet
	for tr := range Flatten(n) {
		seen = append(seen, tr)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, [][]any{{"a", "b", "1"}, {"a", "c", "2"}}, values(seen))
}

func TestFlatten_PathsAreIndependent(t *testing.T) {
	n := mustParse(t, `{"a":{"b":"1","c":"2"}}`)
	got := FlattenAll(n)
	require.Len(t, got, 2)

	got[0].Path[0] = "changed"
	assert.Equal(t, []string{"a", "c"}, got[1].Path)
}

func TestTriplet_MarshalJSON(t *testing.T) {
	n := mustParse(t, `{"Intro":{"Sub":"B C"},"n":[1.5]}`)
	b, err := json.Marshal(FlattenAll(n))
	require.NoError(t, err)
	assert.JSONEq(t, `[["Intro","Sub","B C"],["n",1.5]]`, string(b))
}
