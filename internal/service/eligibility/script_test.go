package eligibility

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

func TestDefaultScriptPrompts(t *testing.T) {
	s := DefaultScript()

	assert.Equal(t, "Is your monthly in-hand salary above 25000 rupees?", s.Prompt(screening.StepAskSalary))
	assert.Equal(t, "Do you currently live in a metro city such as Delhi, Mumbai, or Bangalore?", s.Prompt(screening.StepAskCity))
	assert.Empty(t, s.Prompt(screening.StepInit))
	assert.Empty(t, s.Prompt(screening.StepEnd))
	assert.Equal(t, []string{"delhi", "mumbai", "bangalore"}, s.Cities())
}

func TestVocabularyIsClosedSet(t *testing.T) {
	s := DefaultScript()
	vocab := s.Vocabulary()

	require.Len(t, vocab, 9)
	seen := map[string]bool{}
	for _, text := range vocab {
		require.NotEmpty(t, text)
		require.False(t, seen[text], "duplicate prompt %q", text)
		seen[text] = true
		assert.True(t, s.Contains(text))
	}
	assert.True(t, seen[s.Reprompt(screening.StepAskCity)])
	assert.False(t, s.Contains("hello there"))
}

func TestSpokenCityList(t *testing.T) {
	assert.Equal(t, "", SpokenCityList(nil))
	assert.Equal(t, "Delhi", SpokenCityList([]string{"delhi"}))
	assert.Equal(t, "Delhi or Navi Mumbai", SpokenCityList([]string{"delhi", "navi mumbai"}))
	assert.Equal(t, "A, B, or C", SpokenCityList([]string{"a", "b", "c"}))
}

func TestNewScriptNormalizesInput(t *testing.T) {
	s, err := NewScript(ScriptConfig{
		Cities:        []string{" Delhi ", "delhi", "", "PUNE"},
		Clarification: "Sorry?",
		Prompts: map[screening.Step]string{
			screening.StepAskSalary: "Do you earn more than {min_salary} a month?",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"delhi", "pune"}, s.Cities())
	assert.Equal(t, "Sorry? ", s.Clarification())
	assert.Equal(t, "Do you earn more than 25000 a month?", s.Prompt(screening.StepAskSalary))
	assert.Equal(t, "Sorry? Do you earn more than 25000 a month?", s.Reprompt(screening.StepAskSalary))
}

func TestNewScriptRejectsNegativeSalary(t *testing.T) {
	_, err := NewScript(ScriptConfig{MinSalary: -1})
	require.Error(t, err)
}

func TestLoadScriptFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
min_salary: 30000
cities: [pune, hyderabad]
prompts:
  ask_employment: "Do you draw a monthly salary?"
affirmative: [yes, ji]
`), 0o600))

	file, err := LoadScriptFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes", "ji"}, file.Affirmative)

	cfg, err := file.Apply(ScriptConfig{MinSalary: 25000})
	require.NoError(t, err)
	s, err := NewScript(cfg)
	require.NoError(t, err)

	assert.Equal(t, "Do you draw a monthly salary?", s.Prompt(screening.StepAskEmployment))
	assert.Equal(t, "Is your monthly in-hand salary above 30000 rupees?", s.Prompt(screening.StepAskSalary))
	assert.Equal(t, "Do you currently live in a metro city such as Pune or Hyderabad?", s.Prompt(screening.StepAskCity))
}

func TestLoadScriptFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
clarification = "Please answer Yes or No."
negative = ["no", "never"]

[prompts]
eligible = "You qualify."
`), 0o600))

	file, err := LoadScriptFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"no", "never"}, file.Negative)

	cfg, err := file.Apply(ScriptConfig{})
	require.NoError(t, err)
	s, err := NewScript(cfg)
	require.NoError(t, err)
	assert.Equal(t, "You qualify.", s.Prompt(screening.StepEligible))
	assert.Equal(t, "Please answer Yes or No. Are you currently a salaried employee?", s.Reprompt(screening.StepAskEmployment))
}

func TestLoadScriptFileErrors(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "script.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{}`), 0o600))
	_, err := LoadScriptFile(unknown)
	require.ErrorIs(t, err, ErrUnknownScriptFormat)

	badStep := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badStep, []byte("prompts:\n  farewell: bye\n"), 0o600))
	_, err = LoadScriptFile(badStep)
	require.Error(t, err)

	_, err = LoadScriptFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
