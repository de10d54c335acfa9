package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// stripFences removes markdown code fences the model sometimes wraps JSON
// in, keeping only the fenced body.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// extractObject trims any prose surrounding the outermost JSON object.
func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

// DecodeJSON unmarshals a model response into out, tolerating fences,
// surrounding prose, and minor syntax damage (repaired before giving up).
func DecodeJSON(content string, out interface{}) error {
	return decodeModelJSON(content, out)
}

func decodeModelJSON(content string, out interface{}) error {
	candidate := extractObject(stripFences(content))
	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("response is not valid JSON after repair: %w", err)
	}
	return nil
}
