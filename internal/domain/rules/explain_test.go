package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobshield/jobshield/internal/domain/model"
)

func TestSummaryFor(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		level model.AuthenticityLevel
		want  string
	}{
		{"likely real", 92.3, model.LevelLikelyReal, "High authenticity (92). No major red flags detected."},
		{"uncertain", 61.7, model.LevelUncertain, "Mixed signals (62). Review the flagged items before applying."},
		{"likely fake", 12.4, model.LevelLikelyFake, "Low authenticity (12). Multiple red flags suggest this posting may not be legitimate."},
		{"unknown level", 50.0, model.AuthenticityLevel("???"), "Authenticity score: 50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, summaryFor(tc.score, tc.level))
		})
	}
}

func TestExplain(t *testing.T) {
	t.Run("red flags are heaviest-first and capped at five", func(t *testing.T) {
		activated := []ActivatedRule{
			{ID: "C4", EffectiveWeight: 0.15, Signal: SignalNegative, Description: "short jd"},
			{ID: "B2", EffectiveWeight: 0.25, Signal: SignalNegative, Description: "undisclosed company"},
			{ID: "B4", EffectiveWeight: 0.10, Signal: SignalPositive, Description: "domain matches"},
			{ID: "A2", EffectiveWeight: 0.20, Signal: SignalNegative, Description: "high posting volume"},
			{ID: "C6", EffectiveWeight: 0.10, Signal: SignalNegative, Description: "mangled formatting"},
			{ID: "D1", EffectiveWeight: 0.10, Signal: SignalNegative, Description: "reposted often"},
			{ID: "D2", EffectiveWeight: 0.08, Signal: SignalNegative, Description: "stale posting"},
		}

		exp := Explain(18.2, model.LevelLikelyFake, activated)

		assert.Equal(t, []string{
			"undisclosed company",
			"high posting volume",
			"short jd",
			"mangled formatting",
			"reposted often",
		}, exp.RedFlags)
		assert.NotContains(t, exp.RedFlags, "stale posting")
	})

	t.Run("ties keep table order", func(t *testing.T) {
		activated := []ActivatedRule{
			{ID: "C6", EffectiveWeight: 0.10, Signal: SignalNegative, Description: "first tied"},
			{ID: "D1", EffectiveWeight: 0.10, Signal: SignalNegative, Description: "second tied"},
		}
		exp := Explain(70, model.LevelUncertain, activated)
		assert.Equal(t, []string{"first tied", "second tied"}, exp.RedFlags)
	})

	t.Run("positive signals keep table order", func(t *testing.T) {
		activated := []ActivatedRule{
			{ID: "B4", EffectiveWeight: 0.10, Signal: SignalPositive, Description: "domain matches"},
			{ID: "A2", EffectiveWeight: 0.20, Signal: SignalNegative, Description: "high posting volume"},
			{ID: "C8", EffectiveWeight: 0.05, Signal: SignalPositive, Description: "real benefits"},
		}
		exp := Explain(70, model.LevelUncertain, activated)
		assert.Equal(t, []string{"domain matches", "real benefits"}, exp.PositiveSignals)
	})

	t.Run("no activations yields empty lists", func(t *testing.T) {
		exp := Explain(100, model.LevelLikelyReal, nil)
		assert.Empty(t, exp.RedFlags)
		assert.Empty(t, exp.PositiveSignals)
	})
}
