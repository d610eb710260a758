package question_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/featgen/compiler/load"
	"github.com/syssam/featgen/question"
)

func TestLoadFile(t *testing.T) {
	q, err := question.LoadFile("testdata/pbe_questions.yaml")
	require.NoError(t, err)
	assert.Equal(t, "c0_PasswordBasedEncryption", q.Task)
	require.Len(t, q.Questions, 3)

	digest := q.Questions[0]
	assert.Equal(t, "Any", digest.Default().Value)
	sha := digest.Answer("SHA-256")
	require.NotNil(t, sha)
	require.Len(t, sha.Dependencies, 1)
	assert.Equal(t, &question.Dependency{Algorithm: "c0_digest", Operator: "=", Value: "sha_256"}, sha.Dependencies[0])
	assert.Equal(t, "c0_digest[] = sha_256", sha.Dependencies[0].String())
	assert.Nil(t, digest.Answer("MD4"))
}

func TestSelect(t *testing.T) {
	q, err := question.LoadFile("testdata/pbe_questions.yaml")
	require.NoError(t, err)

	picked, err := q.Select(map[int]string{1: "128 bit"})
	require.NoError(t, err)
	require.Len(t, picked, 3)
	assert.Equal(t, "Any", picked[q.Questions[0]].Value)
	assert.Equal(t, "128 bit", picked[q.Questions[1]].Value)
	assert.Equal(t, "No", picked[q.Questions[2]].Value)

	_, err = q.Select(map[int]string{1: "512 bit"})
	assert.Error(t, err)
	_, err = q.Select(map[int]string{7: "Any"})
	assert.Error(t, err)
}

func TestSorted(t *testing.T) {
	a := &question.Question{ID: 2, Text: "a"}
	b := &question.Question{ID: 1, Text: "z"}
	c := &question.Question{ID: 1, Text: "b"}
	got := question.Sorted(map[*question.Question]*question.Answer{a: nil, b: nil, c: nil})
	assert.Equal(t, []*question.Question{c, b, a}, got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		format  load.Format
		data    string
		wantErr bool
	}{
		{
			name:   "JSON",
			format: load.JSON,
			data:   `{"questions": [{"id": 0, "text": "q", "answers": [{"value": "a", "dependencies": [{"algorithm": "c0_x", "operator": "++", "value": "A;B"}]}]}]}`,
		},
		{
			name:    "UnknownField",
			format:  load.JSON,
			data:    `{"questions": [{"id": 0, "text": "q", "answers": [{"value": "a", "weight": 2}]}]}`,
			wantErr: true,
		},
		{
			name:    "DuplicateID",
			format:  load.YAML,
			data:    "questions:\n  - id: 1\n    answers: [{value: a}]\n  - id: 1\n    answers: [{value: b}]\n",
			wantErr: true,
		},
		{
			name:    "NoAnswers",
			format:  load.YAML,
			data:    "questions:\n  - id: 1\n    text: q\n",
			wantErr: true,
		},
		{
			name:    "IncompleteDependency",
			format:  load.YAML,
			data:    "questions:\n  - id: 1\n    answers:\n      - value: a\n        dependencies: [{value: x}]\n",
			wantErr: true,
		},
		{
			name:    "UnsupportedFormat",
			format:  load.Format("toml"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := question.Parse([]byte(tt.data), tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, q.Questions, 1)
		})
	}
}

func TestLoadProperties(t *testing.T) {
	p, err := question.LoadProperties("testdata/pbe_properties.yaml")
	require.NoError(t, err)
	require.Len(t, p.Constraints, 3)
	assert.Equal(t, question.PropertyConstraint{
		Parent: "c0_cipher", Child: "c0_keySize", Operator: ">", Value: "100", Enabled: true,
	}, p.Constraints[0])

	var skipped []bool
	for _, c := range p.Constraints {
		skipped = append(skipped, c.Skip())
	}
	assert.Equal(t, []bool{false, true, true}, skipped)

	_, err = question.LoadProperties("testdata/missing.yaml")
	assert.Error(t, err)
	_, err = question.ParseProperties([]byte(`{"constraints": [{"parent": "a", "extra": 1}]}`), load.JSON)
	assert.Error(t, err)
}
