package config

import (
	"fmt"

	"github.com/quickrupee/voicebot/backend/internal/analysis/yesno"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
)

// NewScreener 根据配置构造脚本与分类器。SCRIPT_FILE 中的字段覆盖环境变量。
func (c EligibilityConfig) NewScreener() (*eligibility.Script, *yesno.Classifier, error) {
	scriptCfg := eligibility.ScriptConfig{
		MinSalary: c.MinSalary,
		Cities:    c.Cities,
	}

	var file *eligibility.ScriptFile
	if c.ScriptFile != "" {
		loaded, err := eligibility.LoadScriptFile(c.ScriptFile)
		if err != nil {
			return nil, nil, err
		}
		file = loaded
	}

	scriptCfg, err := file.Apply(scriptCfg)
	if err != nil {
		return nil, nil, err
	}

	script, err := eligibility.NewScript(scriptCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build screening script: %w", err)
	}

	var affirmative, negative []string
	if file != nil {
		affirmative, negative = file.Affirmative, file.Negative
	}
	classifier, err := yesno.New(affirmative, negative)
	if err != nil {
		return nil, nil, fmt.Errorf("build answer classifier: %w", err)
	}

	return script, classifier, nil
}
