package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckChange(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		rules    []string
		judgment Judgment
	}{
		{"clean", "improve database query performance", nil, Proceed},
		{"python debug print", "add print(result) after the query", []string{"no_debug_output"}, Reject},
		{"go debug print", `fmt.Println("here")`, []string{"no_debug_output"}, Reject},
		{"public api", "change the public API for orders", []string{"public_api_change"}, Reject},
		{"api without public", "tune the api cache", nil, Proceed},
		{"function change", "rewrite function parseDate", []string{"function_docs"}, Caution},
		{"go func", "func handle() error", []string{"function_docs"}, Caution},
		{"violation and warning", "def helper(): print(x)", []string{"no_debug_output", "function_docs"}, Reject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := CheckChange(tt.text)
			var names []string
			for _, f := range findings {
				names = append(names, f.Rule)
			}
			assert.Equal(t, tt.rules, names)
			assert.Equal(t, tt.judgment, Judge(findings))
		})
	}
}

func TestSplit(t *testing.T) {
	v, w := Split(CheckChange("def helper(): console.log(x)"))
	assert.Len(t, v, 1)
	assert.Len(t, w, 1)
	assert.Equal(t, Never, v[0].Strength)
	assert.Equal(t, Should, w[0].Strength)
	assert.Contains(t, v[0].String(), "NEVER:")
}
