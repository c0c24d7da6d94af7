package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// ResolveTransform resolves a transform template against context data.
// String values may embed {$.path} jsonpath tokens; a string that is a
// single token resolves to the looked-up value itself, preserving its
// type. Maps and lists are resolved recursively.
func ResolveTransform(data map[string]any, transform map[string]any) map[string]any {
	output := make(map[string]any)
	resolveMap(data, transform, output)
	return output
}

func resolveMap(data map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveMap(data, val, out)
		case []any:
			output[k] = resolveList(data, val)
		case string:
			output[k] = resolveString(data, val)
		default:
			output[k] = v
		}
	}
}

func resolveList(data map[string]any, list []any) []any {
	output := make([]any, 0, len(list))
	for _, v := range list {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			resolveMap(data, val, out)
			output = append(output, out)
		case []any:
			output = append(output, resolveList(data, val))
		case string:
			output = append(output, resolveString(data, val))
		default:
			output = append(output, v)
		}
	}
	return output
}

func resolveString(data map[string]any, s string) any {
	tokens := tokenPattern.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	if len(tokens) == 1 && tokens[0] == s {
		path := strings.Trim(s, "{}")
		if !strings.HasPrefix(path, "$") {
			return s
		}
		value, err := jsonpath.JsonPathLookup(data, path)
		if err != nil {
			return nil
		}
		return value
	}
	out := s
	for _, token := range tokens {
		path := strings.Trim(token, "{}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, _ := jsonpath.JsonPathLookup(data, path)
		out = strings.ReplaceAll(out, token, fmt.Sprintf("%v", value))
	}
	return out
}
