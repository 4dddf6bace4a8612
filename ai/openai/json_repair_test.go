package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verification struct {
	RefinedAnswer string  `json:"refined_answer"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

func TestRepairJSON_VerifierPayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want verification
	}{
		{
			name: "missing opening quotes",
			in:   `{"refined_answer": "Sea levels rose [Source 1].", confidence": 0.8, reasoning": "grounded"}`,
			want: verification{"Sea levels rose [Source 1].", 0.8, "grounded"},
		},
		{
			name: "bare keys",
			in:   `{refined_answer: "Sea levels rose.", confidence: 0.4}`,
			want: verification{RefinedAnswer: "Sea levels rose.", Confidence: 0.4},
		},
		{
			name: "trailing comma",
			in:   "{\n  \"refined_answer\": \"Glaciers retreated.\",\n  \"confidence\": 0.7,\n}",
			want: verification{RefinedAnswer: "Glaciers retreated.", Confidence: 0.7},
		},
		{
			name: "surrounding prose",
			in:   "Here is the verified answer:\n{\"refined_answer\": \"Turbines use monopiles.\", \"confidence\": 0.9}\nLet me know if you need more.",
			want: verification{RefinedAnswer: "Turbines use monopiles.", Confidence: 0.9},
		},
		{
			name: "escaped quotes in a value",
			in:   `{"refined_answer": "The report says \"rates fell\", sharply", confidence": 0.6}`,
			want: verification{RefinedAnswer: `The report says "rates fell", sharply`, Confidence: 0.6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verification
			require.NoError(t, json.Unmarshal([]byte(repairJSON(tt.in)), &got), repairJSON(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepairJSON_LeavesValidJSON(t *testing.T) {
	tests := []string{
		`{"refined_answer": "ok", "confidence": 0.5}`,
		`{"refined_answer": "Rates fell, because: demand dropped", "confidence": 0.6}`,
		`{"refined_answer": "a {nested} brace, reasoning: none", "confidence": 0.1}`,
		`{"sources": [true, false, 3], "confidence": 1}`,
	}
	for _, valid := range tests {
		t.Run(valid, func(t *testing.T) {
			assert.Equal(t, valid, repairJSON(valid))
		})
	}
}

func TestRepairJSON_NoObject(t *testing.T) {
	assert.Equal(t, "no json here", repairJSON("no json here"))
}
