package speech

import "strings"

// DefaultVoice 默认音色。
const DefaultVoice = "alloy"

var supportedVoices = map[string]struct{}{
	"alloy":   {},
	"ash":     {},
	"ballad":  {},
	"coral":   {},
	"echo":    {},
	"fable":   {},
	"nova":    {},
	"onyx":    {},
	"sage":    {},
	"shimmer": {},
	"verse":   {},
}

var voiceAliases = map[string]string{
	"default": DefaultVoice,
	"female":  "nova",
	"male":    "onyx",
	"warm":    "coral",
}

// NormalizeVoice 将别名映射为实际音色，未知音色回退到默认值。
func NormalizeVoice(voice string) string {
	trimmed := strings.ToLower(strings.TrimSpace(voice))
	if trimmed == "" {
		return DefaultVoice
	}
	if mapped, ok := voiceAliases[trimmed]; ok {
		return mapped
	}
	if IsSupportedVoice(trimmed) {
		return trimmed
	}
	return DefaultVoice
}

// IsSupportedVoice 判断音色是否在白名单中。
func IsSupportedVoice(voice string) bool {
	_, ok := supportedVoices[strings.ToLower(strings.TrimSpace(voice))]
	return ok
}
