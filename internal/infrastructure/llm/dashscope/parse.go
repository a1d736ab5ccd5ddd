package dashscope

import (
	"regexp"
	"strconv"
	"strings"
)

var confidencePattern = regexp.MustCompile(`(?i)(confidence|probability|likelihood)\s*[:=]\s*(\d+(?:\.\d+)?)(%?)`)

var negativeTokens = []string{
	"no fire",
	"no visible fire",
	"absence of fire",
	"unlikely",
	"not detected",
	"no smoke",
	"no flames",
	"no sign of fire",
	"no obvious fire",
}

var affirmativeTokens = []string{"fire", "flame", "smoke", "burn", "blaze", "ignition"}

// extractSummary pulls the assistant text out of a chat-completions payload.
// Content may be a plain string or a list of typed blocks.
func extractSummary(payload map[string]any) string {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return ""
	}

	switch content := message["content"].(type) {
	case string:
		return strings.TrimSpace(content)
	case []any:
		var texts []string
		for _, raw := range content {
			block, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if block["type"] != "text" {
				continue
			}
			if text, ok := block["text"].(string); ok {
				if trimmed := strings.TrimSpace(text); trimmed != "" {
					texts = append(texts, trimmed)
				}
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

// extractConfidence scans the summary for a stated confidence figure and
// normalizes it into [0,1]. Returns nil when the model stated none.
func extractConfidence(summary string) *float64 {
	match := confidencePattern.FindStringSubmatch(summary)
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return nil
	}
	if match[3] == "%" && value > 1 {
		if value > 100 {
			value = 100
		}
		value /= 100
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return &value
}

// inferFireDetection reads the verdict out of free-form model prose.
// Negative phrasing wins over keyword hits; a stated confidence or the
// local heuristic breaks ties when the summary is inconclusive.
func inferFireDetection(summary string, confidence *float64, localProbability float64) bool {
	text := strings.ToLower(summary)
	if text == "" {
		if confidence != nil && *confidence >= 0.5 {
			return true
		}
		return localProbability >= 0.5
	}

	for _, token := range negativeTokens {
		if strings.Contains(text, token) {
			return false
		}
	}

	for _, token := range affirmativeTokens {
		if strings.Contains(text, token) {
			for _, inner := range affirmativeTokens {
				if strings.Contains(text, "no "+inner) {
					return false
				}
			}
			return true
		}
	}

	if confidence != nil {
		return *confidence >= 0.5
	}
	return localProbability >= 0.5
}
