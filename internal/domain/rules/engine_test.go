package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobshield/jobshield/internal/domain/model"
)

func loadDefaultTable(t *testing.T) *Table {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "assets", "rule_table.json"))
	require.NoError(t, err)
	table, err := ParseTable(raw)
	require.NoError(t, err)
	return table
}

func newTestEngine(t *testing.T, table *Table) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineOptions{Table: table})
	require.NoError(t, err)
	return engine
}

func activatedIDs(activated []ActivatedRule) []string {
	ids := make([]string, 0, len(activated))
	for _, a := range activated {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(EngineOptions{})
	assert.Error(t, err)
}

func TestEngineEvaluate(t *testing.T) {
	table := loadDefaultTable(t)
	engine := newTestEngine(t, table)

	t.Run("empty record activates nothing", func(t *testing.T) {
		activated := engine.Evaluate(&model.JobRecord{JobID: "j", URL: "u"})
		assert.Empty(t, activated)
	})

	t.Run("recruiter language activates A1 at full weight", func(t *testing.T) {
		rec := &model.JobRecord{
			JobID:  "j",
			URL:    "u",
			JDText: "We are hiring on behalf of our client, a fintech startup.",
			CollectionMetadata: &model.CollectionMetadata{
				Platform:       model.PlatformLinkedIn,
				PosterExpected: true,
				PosterPresent:  true,
			},
		}
		activated := engine.Evaluate(rec)
		require.Contains(t, activatedIDs(activated), "A1")
		for _, a := range activated {
			if a.ID == "A1" {
				assert.Equal(t, 0.25, a.EffectiveWeight)
				assert.Equal(t, SignalNegative, a.Signal)
			}
		}
	})

	t.Run("poster absent halves recruiter cluster", func(t *testing.T) {
		rec := &model.JobRecord{
			JobID:  "j",
			URL:    "u",
			JDText: "Hiring on behalf of our client.",
			CollectionMetadata: &model.CollectionMetadata{
				PosterExpected: true,
				PosterPresent:  false,
			},
		}
		activated := engine.Evaluate(rec)
		require.Contains(t, activatedIDs(activated), "A1")
		for _, a := range activated {
			if a.ID == "A1" {
				assert.Equal(t, 0.25, a.Weight)
				assert.Equal(t, 0.125, a.EffectiveWeight)
			}
		}
	})

	t.Run("poster not expected suppresses recruiter cluster entirely", func(t *testing.T) {
		rec := &model.JobRecord{
			JobID:  "j",
			URL:    "u",
			JDText: "Hiring on behalf of our client.",
			CollectionMetadata: &model.CollectionMetadata{
				PosterExpected: false,
				PosterPresent:  false,
			},
		}
		activated := engine.Evaluate(rec)
		assert.NotContains(t, activatedIDs(activated), "A1")
	})

	t.Run("non-cluster rules unaffected by poster capability", func(t *testing.T) {
		rec := &model.JobRecord{
			JobID:       "j",
			URL:         "u",
			JDText:      "You will design systems. Contact me at hire.now99@gmail.com today.",
			CompanyName: "Acme",
			CollectionMetadata: &model.CollectionMetadata{
				PosterExpected: false,
			},
		}
		activated := engine.Evaluate(rec)
		require.Contains(t, activatedIDs(activated), "C2")
		for _, a := range activated {
			if a.ID == "C2" {
				assert.Equal(t, 0.25, a.EffectiveWeight)
			}
		}
	})

	t.Run("results follow table order", func(t *testing.T) {
		count := 23
		age := 2
		rec := &model.JobRecord{
			JobID:  "j",
			URL:    "u",
			JDText: "Hiring on behalf of our client. Apply ASAP at quickjobs@gmail.com",
			PosterInfo: &model.PosterInfo{
				RecentJobCount7d: &count,
				AccountAgeMonths: &age,
			},
		}
		activated := engine.Evaluate(rec)
		ids := activatedIDs(activated)
		require.Contains(t, ids, "A1")
		require.Contains(t, ids, "C1")
		assert.Less(t, indexOf(ids, "A1"), indexOf(ids, "C1"))
	})

	t.Run("unknown pattern type never activates", func(t *testing.T) {
		custom, err := ParseTable([]byte(`{"rules": [
			{"id": "Z1", "weight": 0.5, "confidence": "high", "signal": "negative",
			 "description": "future check", "data_source": "jd_text",
			 "pattern_type": "entropy_check"}
		]}`))
		require.NoError(t, err)
		engine := newTestEngine(t, custom)
		activated := engine.Evaluate(&model.JobRecord{JobID: "j", URL: "u", JDText: "anything"})
		assert.Empty(t, activated)
	})

	t.Run("malformed pattern value never activates", func(t *testing.T) {
		custom, err := ParseTable([]byte(`{"rules": [
			{"id": "Z1", "weight": 0.5, "confidence": "high", "signal": "negative",
			 "description": "broken", "data_source": "jd_text",
			 "pattern_type": "string_contains", "pattern_value": {"not": "a string"}},
			{"id": "Z2", "weight": 0.1, "confidence": "low", "signal": "negative",
			 "description": "short", "data_source": "jd_text",
			 "pattern_type": "jd_length_check", "pattern_value": 200}
		]}`))
		require.NoError(t, err)
		engine := newTestEngine(t, custom)
		activated := engine.Evaluate(&model.JobRecord{JobID: "j", URL: "u", JDText: "short text"})
		assert.Equal(t, []string{"Z2"}, activatedIDs(activated))
	})
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
