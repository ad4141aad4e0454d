package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/mode"
)

func TestHooksOverrideDefaults(t *testing.T) {
	e, err := NewEngineFromSource(`
function knockout_award(tool, default)
  if tool == "knife" then return default * 2 end
  return default
end

function player_score(s)
  return s.knockouts * 3 - s.deaths
end
`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, int32(3000), e.KnockoutAward("knife", 1500))
	assert.Equal(t, int32(300), e.KnockoutAward("pistol", 300))
	assert.Equal(t, int32(7), e.Score(&mode.Stats{Knockouts: 3, Deaths: 2}))
}

func TestMissingHooksFallBack(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	s := &mode.Stats{Knockouts: 2, Assists: 1, Deaths: 1}
	assert.False(t, e.Has(hookScore))
	assert.Equal(t, int32(300), e.KnockoutAward("knife", 300))
	assert.Equal(t, s.DefaultScore(), e.Score(s))
}

func TestBrokenHookFallsBack(t *testing.T) {
	e, err := NewEngineFromSource(`
function knockout_award(tool, default) error("boom") end
function player_score(s) return "lots" end
`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, int32(50), e.KnockoutAward("x", 50))
	s := &mode.Stats{Knockouts: 1}
	assert.Equal(t, s.DefaultScore(), e.Score(s))
}

func TestResultsAreTruncatedAndSaturated(t *testing.T) {
	e, err := NewEngineFromSource(`
function knockout_award(tool, default)
  if tool == "big" then return 1e12 end
  return default / 3
end
`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, int32(33), e.KnockoutAward("small", 100))
	assert.Equal(t, int32(-33), e.KnockoutAward("small", -100))
	assert.Equal(t, int32(2147483647), e.KnockoutAward("big", 0))
}

func TestNondeterministicLibrariesAreClosed(t *testing.T) {
	for name, src := range map[string]string{
		"random": "x = math.random()",
		"os":     "x = os.time()",
		"io":     "io.write('hi')",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewEngineFromSource(src, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestHookCallsDoNotShareState(t *testing.T) {
	e, err := NewEngineFromSource(`
calls = 0
local seen = 0
function knockout_award(tool, default)
  calls = calls + 1
  seen = seen + 1
  math.bonus = (math.bonus or 0) + 1
  return default + calls * 100 + seen * 10 + math.bonus
end
`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, int32(1111), e.KnockoutAward("knife", 1000), "call %d", i)
	}
}

func TestScriptsCannotReachSharedGlobals(t *testing.T) {
	e, err := NewEngineFromSource(`
function knockout_award(tool, default)
  leaked = (leaked or 0) + 1
  string.upper = nil
  return default + leaked
end
function player_score(s)
  return string.len(string.upper("abc")) + (leaked or 0)
end
`, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, int32(11), e.KnockoutAward("x", 10))
	assert.Equal(t, int32(3), e.Score(&mode.Stats{}))

	_, err = NewEngineFromSource(`getmetatable("").__index.upper = nil`, zap.NewNop())
	assert.Error(t, err, "string metatable is locked")
	_, err = NewEngineFromSource(`setfenv(1, {})`, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadDirInNameOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte("award = 10"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"),
		[]byte("function knockout_award(tool, d) return award + 1 end"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644))

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, int32(11), e.KnockoutAward("knife", 0))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.lua"), []byte("this is not lua"), 0o644))
	_, err = NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}
