package publish

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
)

// structuredContentKeys is the lookup order for object-shaped content.
var structuredContentKeys = []string{"description", "content", "title", "caption"}

// ResolveContent returns the per-platform entry when present and the topic
// otherwise.
func ResolveContent(post core.Post, platform core.Platform) string {
	if value, ok := post.PlatformContent[platform]; ok {
		if content := CoerceContent(value); content != "" {
			return content
		}
	}
	return strings.TrimSpace(post.Topic)
}

// CoerceContent flattens a content entry into text. Strings pass through and
// objects yield their first non-empty description, content, title or caption.
func CoerceContent(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case *string:
		if typed == nil {
			return ""
		}
		return strings.TrimSpace(*typed)
	case map[string]string:
		for _, key := range structuredContentKeys {
			if text := strings.TrimSpace(typed[key]); text != "" {
				return text
			}
		}
		return ""
	case map[string]any:
		for _, key := range structuredContentKeys {
			if text := CoerceContent(typed[key]); text != "" {
				return text
			}
		}
		return ""
	case json.RawMessage:
		return coerceJSON(typed)
	case []byte:
		return coerceJSON(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return coerceJSON(encoded)
}

func coerceJSON(raw []byte) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return strings.TrimSpace(string(raw))
	}
	switch decoded.(type) {
	case string, map[string]any:
		return CoerceContent(decoded)
	}
	return ""
}
