package eligibility

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

// ErrUnknownScriptFormat 表示脚本文件扩展名既不是 YAML 也不是 TOML。
var ErrUnknownScriptFormat = errors.New("unknown script file format")

// ScriptFile 是可选的脚本覆盖文件，支持 .yaml/.yml 与 .toml。
type ScriptFile struct {
	MinSalary     int               `yaml:"min_salary" toml:"min_salary"`
	Cities        []string          `yaml:"cities" toml:"cities"`
	Clarification string            `yaml:"clarification" toml:"clarification"`
	Prompts       map[string]string `yaml:"prompts" toml:"prompts"`
	Affirmative   []string          `yaml:"affirmative" toml:"affirmative"`
	Negative      []string          `yaml:"negative" toml:"negative"`
}

// LoadScriptFile 按扩展名解析脚本文件。
func LoadScriptFile(path string) (*ScriptFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}

	var file ScriptFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("decode yaml script %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), &file); err != nil {
			return nil, fmt.Errorf("decode toml script %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScriptFormat, path)
	}

	if _, err := file.StepPrompts(); err != nil {
		return nil, err
	}
	return &file, nil
}

// StepPrompts 把按步骤名索引的提示语转换为 screening.Step 键。
func (f *ScriptFile) StepPrompts() (map[screening.Step]string, error) {
	if f == nil || len(f.Prompts) == 0 {
		return nil, nil
	}

	known := make(map[screening.Step]struct{}, len(spokenSteps))
	for _, step := range spokenSteps {
		known[step] = struct{}{}
	}

	out := make(map[screening.Step]string, len(f.Prompts))
	for name, text := range f.Prompts {
		step := screening.Step(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := known[step]; !ok {
			return nil, fmt.Errorf("script file has prompt for unknown step %q", name)
		}
		out[step] = text
	}
	return out, nil
}

// Apply 用文件内容覆盖 cfg 中对应的字段。
func (f *ScriptFile) Apply(cfg ScriptConfig) (ScriptConfig, error) {
	if f == nil {
		return cfg, nil
	}
	prompts, err := f.StepPrompts()
	if err != nil {
		return cfg, err
	}
	if f.MinSalary != 0 {
		cfg.MinSalary = f.MinSalary
	}
	if len(f.Cities) > 0 {
		cfg.Cities = f.Cities
	}
	if f.Clarification != "" {
		cfg.Clarification = f.Clarification
	}
	if len(prompts) > 0 {
		cfg.Prompts = prompts
	}
	return cfg, nil
}
