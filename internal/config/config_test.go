package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jericho/internal/domain"
	"jericho/internal/metrics"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "America/Chicago", cfg.Planner.TimeZone)
	assert.Equal(t, 14, cfg.Planner.HistoryWindowDays)
	assert.Equal(t, 50, cfg.Snapshots.Cap)
	require.Len(t, cfg.Suggestions.Templates, 4)
	assert.Equal(t, domain.Creation, cfg.Suggestions.Templates[0].Domain)
	assert.Equal(t, 60.0, cfg.Targets()[metrics.PracticeCreation])
	assert.Equal(t, "America/Chicago", cfg.Location().String())
}

func TestFromYAMLOverridesAndKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("planner:\n  time_zone: UTC\n  classifier: goal_type\n"))
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Planner.TimeZone)
	assert.Equal(t, "goal_type", cfg.Planner.Classifier)
	assert.Equal(t, 14, cfg.Planner.HistoryWindowDays)
	assert.Len(t, cfg.Suggestions.Templates, 4)
}

func TestPatternTargetAliases(t *testing.T) {
	cfg, err := FromYAML([]byte("planner:\n  pattern_targets: {body: 45}\n"))
	require.NoError(t, err)
	assert.Equal(t, 45.0, cfg.Targets()[metrics.PracticeBody])
	assert.Equal(t, 60.0, cfg.Targets()[metrics.PracticeCreation])
	assert.NotContains(t, cfg.Planner.PatternTargets, "body")

	_, err = FromYAML([]byte("planner:\n  pattern_targets: {Body: 30, body: 90}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Body and body")

	cfg = Default()
	cfg.Planner.PatternTargets["BODY"] = 10
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zone":       "planner:\n  time_zone: Mars/Olympus\n",
		"classifier": "planner:\n  classifier: tarot\n",
		"source":     "planner:\n  plan_source: guesses\n",
		"window":     "planner:\n  history_window_days: 0\n",
		"target":     "planner:\n  pattern_targets: {Sleep: 10}\n",
		"slot":       "suggestions:\n  slots: [\"25:99\"]\n",
		"template":   "suggestions:\n  templates:\n    - {title: X, domain: FUN, duration_minutes: 10}\n",
		"cap":        "snapshots:\n  cap: 0\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	_, err = Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "jericho.yml"), []byte(GenerateDefault("UTC")), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Planner.TimeZone)
	cfg, err = FromFile(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "16:00"}, cfg.Suggestions.Slots)
}
