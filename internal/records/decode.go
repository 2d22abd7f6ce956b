package records

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// skillCategoryOrder fixes the order in which categorized skill maps are flattened.
var skillCategoryOrder = []string{"technical", "tools", "soft"}

// decode decodes a loosely typed document section into out. Numbers become
// strings where strings are expected and single values become one-element slices.
func decode(input any, out any) error {
	cfg := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			flattenStringListHook,
		),
		WeaklyTypedInput: true,
		Result:           out,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

// flattenStringListHook turns comma separated strings and category maps into
// plain string lists.
func flattenStringListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]string{}) {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String:
		return splitList(reflect.ValueOf(data).String()), nil
	case reflect.Map:
		return flattenCategories(data), nil
	default:
		return data, nil
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func flattenCategories(data any) []string {
	value := reflect.ValueOf(data)
	categories := make(map[string]any, value.Len())
	for _, key := range value.MapKeys() {
		categories[fmt.Sprint(key.Interface())] = value.MapIndex(key).Interface()
	}

	keys := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(skillCategoryOrder))
	for _, key := range skillCategoryOrder {
		if _, ok := categories[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(categories))
	for key := range categories {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	result := make([]string, 0)
	for _, key := range keys {
		result = append(result, stringList(categories[key])...)
	}
	return result
}

func stringList(v any) []string {
	switch typed := v.(type) {
	case nil:
		return nil
	case string:
		return splitList(typed)
	case []string:
		return typed
	case []any:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			result = append(result, stringList(item)...)
		}
		return result
	case map[string]any:
		return flattenCategories(typed)
	default:
		if s := strings.TrimSpace(valueAsString(v)); s != "" {
			return []string{s}
		}
		return nil
	}
}

// aliasKeys copies values stored under legacy snake_case keys to their camelCase
// names when the camelCase key is absent. The input map is not modified.
func aliasKeys(doc map[string]any, aliases map[string]string) map[string]any {
	result := make(map[string]any, len(doc))
	for k, v := range doc {
		result[k] = v
	}
	for legacy, current := range aliases {
		if _, ok := result[current]; ok {
			continue
		}
		if v, ok := doc[legacy]; ok {
			result[current] = v
		}
	}
	return result
}

func valueAsString(v any) string {
	if v == nil {
		return ""
	}

	switch typed := v.(type) {
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
