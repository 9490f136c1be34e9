package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	t.Run("valid document preserves order", func(t *testing.T) {
		table, err := ParseTable([]byte(`{"rules": [
			{"id": "A1", "weight": 0.25, "confidence": "high", "signal": "negative",
			 "description": "Posted by external recruiter", "data_source": "jd_text",
			 "pattern_type": "regex", "pattern_value": ["our\\s+client"]},
			{"id": "B1", "weight": 0.1, "confidence": "low", "signal": "positive",
			 "description": "Salary disclosed", "data_source": "platform_metadata.salary_min",
			 "pattern_type": "field_exists"}
		]}`))
		require.NoError(t, err)
		require.Equal(t, 2, table.Len())
		assert.Equal(t, "A1", table.Rules()[0].ID)
		assert.Equal(t, "B1", table.Rules()[1].ID)
		assert.Len(t, table.Rules()[0].regexps, 1)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		_, err := ParseTable([]byte(`{"rules": [
			{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative",
			 "description": "x", "data_source": "jd_text", "pattern_type": "field_exists"},
			{"id": "A1", "weight": 0.2, "confidence": "low", "signal": "negative",
			 "description": "y", "data_source": "jd_text", "pattern_type": "field_exists"}
		]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate rule id")
	})

	t.Run("missing rules list rejected", func(t *testing.T) {
		_, err := ParseTable([]byte(`{}`))
		require.Error(t, err)
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		_, err := ParseTable([]byte(`{"rules": [`))
		require.Error(t, err)
	})

	t.Run("field validation", func(t *testing.T) {
		cases := []struct {
			name string
			doc  string
		}{
			{"empty id", `{"rules": [{"id": " ", "weight": 0.1, "confidence": "low", "signal": "negative", "description": "x", "data_source": "jd_text", "pattern_type": "field_exists"}]}`},
			{"negative weight", `{"rules": [{"id": "A1", "weight": -0.1, "confidence": "low", "signal": "negative", "description": "x", "data_source": "jd_text", "pattern_type": "field_exists"}]}`},
			{"unknown confidence", `{"rules": [{"id": "A1", "weight": 0.1, "confidence": "huge", "signal": "negative", "description": "x", "data_source": "jd_text", "pattern_type": "field_exists"}]}`},
			{"unknown signal", `{"rules": [{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "sideways", "description": "x", "data_source": "jd_text", "pattern_type": "field_exists"}]}`},
			{"missing description", `{"rules": [{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative", "data_source": "jd_text", "pattern_type": "field_exists"}]}`},
			{"missing data_source", `{"rules": [{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative", "description": "x", "pattern_type": "field_exists"}]}`},
			{"missing pattern_type", `{"rules": [{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative", "description": "x", "data_source": "jd_text"}]}`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ParseTable([]byte(tc.doc))
				assert.Error(t, err)
			})
		}
	})

	t.Run("invalid regex rejected at load", func(t *testing.T) {
		_, err := ParseTable([]byte(`{"rules": [
			{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative",
			 "description": "x", "data_source": "jd_text",
			 "pattern_type": "regex", "pattern_value": ["("]}
		]}`))
		require.Error(t, err)
	})

	t.Run("invalid data_source rejected at load", func(t *testing.T) {
		_, err := ParseTable([]byte(`{"rules": [
			{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative",
			 "description": "x", "data_source": "jd_text[",
			 "pattern_type": "field_exists"}
		]}`))
		require.Error(t, err)
	})

	t.Run("unknown pattern type loads fine", func(t *testing.T) {
		table, err := ParseTable([]byte(`{"rules": [
			{"id": "Z1", "weight": 0.1, "confidence": "low", "signal": "negative",
			 "description": "x", "data_source": "jd_text",
			 "pattern_type": "entropy_check"}
		]}`))
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
		assert.False(t, table.Rules()[0].PatternType.Known())
	})

	t.Run("scalar pattern_value accepted for regex", func(t *testing.T) {
		table, err := ParseTable([]byte(`{"rules": [
			{"id": "A1", "weight": 0.1, "confidence": "low", "signal": "negative",
			 "description": "x", "data_source": "jd_text",
			 "pattern_type": "regex", "pattern_value": "our\\s+client"}
		]}`))
		require.NoError(t, err)
		assert.Len(t, table.Rules()[0].regexps, 1)
	})
}

func TestLoadTable(t *testing.T) {
	t.Run("missing file is fatal", func(t *testing.T) {
		_, err := LoadTable(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("loads from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.json")
		doc := `{"rules": [
			{"id": "A1", "weight": 0.25, "confidence": "high", "signal": "negative",
			 "description": "Posted by external recruiter", "data_source": "jd_text",
			 "pattern_type": "regex", "pattern_value": ["our\\s+client"]}
		]}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		table, err := LoadTable(path)
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	})
}

func TestDefaultRuleTableParses(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "assets", "rule_table.json"))
	require.NoError(t, err)

	table, err := ParseTable(raw)
	require.NoError(t, err)
	require.Greater(t, table.Len(), 0)

	for _, rule := range table.Rules() {
		assert.True(t, rule.PatternType.Known(), "rule %s has unknown pattern type", rule.ID)
	}
}
