package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// placeholderReasonDescription is the fixed description used to mark a
// synthesized "reason" property so CleanJsonSchemaForGemini can recognize
// and strip it again (Antigravity's placeholder flows through unmodified
// when a tool definition happens to be shared between both dialects).
const placeholderReasonDescription = "Brief explanation of why you are calling this tool"

// unsupportedConstraints are scalar JSON Schema keywords neither Gemini nor
// Antigravity accept on a property node. They are hoisted into the
// description as human-readable hints rather than silently dropped.
var unsupportedConstraints = []string{
	"minLength", "maxLength", "exclusiveMinimum", "exclusiveMaximum",
	"pattern", "minItems", "maxItems", "format", "default", "examples",
}

// CleanJsonSchemaForGemini sanitizes a JSON Schema for Gemini's accepted
// subset. See SPEC_FULL.md §4.1 / §4.1a for the fixed step order this
// function must preserve.
func CleanJsonSchemaForGemini(schema map[string]any) map[string]any {
	return cleanJSONSchema(schema, false)
}

// CleanJsonSchemaForAntigravity sanitizes a JSON Schema for Antigravity's
// accepted subset, which additionally requires every object schema to carry
// at least one (possibly placeholder) property.
func CleanJsonSchemaForAntigravity(schema map[string]any) map[string]any {
	return cleanJSONSchema(schema, true)
}

func cleanJSONSchema(schema map[string]any, addPlaceholder bool) map[string]any {
	if schema == nil {
		return nil
	}
	var root any = cloneAny(schema)

	convertRefsToHints(&root)
	convertConstToEnum(&root)
	convertEnumValuesToStrings(&root)
	addEnumHints(&root)
	addAdditionalPropertiesHints(&root)
	moveConstraintsToDescription(&root, false)
	mergeAllOf(&root)
	flattenAnyOfOneOf(&root)
	flattenTypeArrays(&root)
	removeUnsupportedKeywords(&root, false)
	if !addPlaceholder {
		removeKeywords(&root, false, []string{"nullable", "title"})
		removePlaceholderFields(&root)
	}
	cleanupRequiredFields(&root)
	if addPlaceholder {
		path := make([]pathSegment, 0, 8)
		addEmptySchemaPlaceholder(&root, &path)
	}

	result, _ := root.(map[string]any)
	return result
}

// pathSegment identifies one step into a schema tree, used by
// flattenTypeArrays to revisit the enclosing object's `required` array after
// the main walk, and by addEmptySchemaPlaceholder to tell the schema root
// apart from nested object nodes.
type pathSegment struct {
	key      string
	index    int
	isIndex  bool
}

// CopyMap returns a deep copy of a JSON-schema-shaped map so callers can
// mutate the result without affecting the caller's original tool definition.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	copied, _ := cloneAny(m).(map[string]any)
	return copied
}

func cloneAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = cloneAny(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = cloneAny(vv)
		}
		return out
	default:
		return v
	}
}

func walkChildren(node any, visit func(child *any)) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			child := v
			visit(&child)
			val[k] = child
		}
	case []any:
		for i, v := range val {
			child := v
			visit(&child)
			val[i] = child
		}
	}
}

// --- step 1: $ref -> prose hint ---

func convertRefsToHints(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				convertRefsToHints(&arr[i])
			}
		}
		return
	}
	if refVal, ok := m["$ref"].(string); ok {
		parts := strings.Split(refVal, "/")
		defName := parts[len(parts)-1]
		hint := fmt.Sprintf("See: %s", defName)
		if existing, ok := m["description"].(string); ok && existing != "" {
			hint = fmt.Sprintf("%s (%s)", existing, hint)
		}
		*node = map[string]any{"type": "object", "description": hint}
		return
	}
	walkChildren(m, convertRefsToHints)
}

// --- step 2: const -> single-element enum ---

func convertConstToEnum(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				convertConstToEnum(&arr[i])
			}
		}
		return
	}
	if constVal, has := m["const"]; has {
		if _, hasEnum := m["enum"]; !hasEnum {
			m["enum"] = []any{constVal}
		}
	}
	walkChildren(m, convertConstToEnum)
}

// --- step 3: enum values coerced to strings, type forced to string ---

func convertEnumValuesToStrings(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				convertEnumValuesToStrings(&arr[i])
			}
		}
		return
	}
	if enumArr, ok := m["enum"].([]any); ok {
		strs := make([]any, len(enumArr))
		for i, v := range enumArr {
			strs[i] = valueToString(v)
		}
		m["enum"] = strs
		m["type"] = "string"
	}
	walkChildren(m, convertEnumValuesToStrings)
}

// --- step 4: enum hint annotation ---

func addEnumHints(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				addEnumHints(&arr[i])
			}
		}
		return
	}
	if enumArr, ok := m["enum"].([]any); ok {
		if n := len(enumArr); n > 1 && n <= 10 {
			vals := make([]string, n)
			for i, v := range enumArr {
				vals[i] = valueToString(v)
			}
			appendHint(m, fmt.Sprintf("Allowed: %s", strings.Join(vals, ", ")))
		}
	}
	walkChildren(m, addEnumHints)
}

// --- step 5: additionalProperties:false hint ---

func addAdditionalPropertiesHints(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				addAdditionalPropertiesHints(&arr[i])
			}
		}
		return
	}
	if b, ok := m["additionalProperties"].(bool); ok && !b {
		appendHint(m, "No extra properties allowed")
	}
	walkChildren(m, addAdditionalPropertiesHints)
}

// --- step 6: move unsupported scalar constraints into description ---

func moveConstraintsToDescription(node *any, inPropertiesMap bool) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				moveConstraintsToDescription(&arr[i], false)
			}
		}
		return
	}
	if !inPropertiesMap {
		for _, key := range unsupportedConstraints {
			val, has := m[key]
			if !has {
				continue
			}
			switch val.(type) {
			case map[string]any, []any:
				continue
			}
			appendHint(m, fmt.Sprintf("%s: %s", key, valueToString(val)))
		}
	}
	for k, v := range m {
		child := v
		moveConstraintsToDescription(&child, k == "properties")
		m[k] = child
	}
}

// --- step 7: allOf merge ---

func mergeAllOf(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				mergeAllOf(&arr[i])
			}
		}
		return
	}
	walkChildren(m, mergeAllOf)

	allOf, has := m["allOf"]
	delete(m, "allOf")
	items, isArr := allOf.([]any)
	if !has || !isArr {
		if has {
			m["allOf"] = allOf
		}
		return
	}

	var required []string
	if reqArr, ok := m["required"].([]any); ok {
		for _, r := range reqArr {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	propsMap, ok := m["properties"].(map[string]any)
	if !ok {
		propsMap = map[string]any{}
		m["properties"] = propsMap
	}

	for _, item := range items {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if itemProps, ok := itemMap["properties"].(map[string]any); ok {
			for k, v := range itemProps {
				propsMap[k] = v
			}
		}
		if reqArr, ok := itemMap["required"].([]any); ok {
			for _, r := range reqArr {
				s, ok := r.(string)
				if !ok {
					continue
				}
				found := false
				for _, existing := range required {
					if existing == s {
						found = true
						break
					}
				}
				if !found {
					required = append(required, s)
				}
			}
		}
	}

	if len(required) > 0 {
		reqAny := make([]any, len(required))
		for i, r := range required {
			reqAny[i] = r
		}
		m["required"] = reqAny
	}
}

// --- step 8: anyOf/oneOf flatten ---

func flattenAnyOfOneOf(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				flattenAnyOfOneOf(&arr[i])
			}
		}
		return
	}
	walkChildren(m, flattenAnyOfOneOf)

	for _, key := range []string{"anyOf", "oneOf"} {
		items, ok := m[key].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		parentDesc, _ := m["description"].(string)
		bestIdx, allTypes := selectBest(items)
		selected := cloneAny(items[bestIdx])
		if parentDesc != "" {
			mergeDescriptionInValue(&selected, parentDesc)
		}
		if len(allTypes) > 1 {
			appendHintToValue(&selected, fmt.Sprintf("Accepts: %s", strings.Join(allTypes, " | ")))
		}
		*node = selected
		return
	}
}

// --- step 9: type-array flattening ---

func flattenTypeArrays(node *any) {
	nullableFields := map[string]map[string]struct{}{}
	path := make([]pathSegment, 0, 8)
	flattenTypeArraysInner(node, &path, nullableFields)

	for pathKey, fields := range nullableFields {
		target := getMutAtPathKey(node, pathKey)
		if target == nil {
			continue
		}
		tm, ok := (*target).(map[string]any)
		if !ok {
			continue
		}
		reqArr, ok := tm["required"].([]any)
		if !ok {
			continue
		}
		filtered := make([]any, 0, len(reqArr))
		for _, r := range reqArr {
			if s, ok := r.(string); ok {
				if _, excluded := fields[s]; excluded {
					continue
				}
			}
			filtered = append(filtered, r)
		}
		if len(filtered) == 0 {
			delete(tm, "required")
		} else {
			tm["required"] = filtered
		}
	}
}

func flattenTypeArraysInner(node *any, path *[]pathSegment, nullableFields map[string]map[string]struct{}) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				*path = append(*path, pathSegment{index: i, isIndex: true})
				flattenTypeArraysInner(&arr[i], path, nullableFields)
				*path = (*path)[:len(*path)-1]
			}
		}
		return
	}

	if typesArr, ok := m["type"].([]any); ok && len(typesArr) > 0 {
		hasNull := false
		var nonNullTypes []string
		for _, item := range typesArr {
			s := valueToString(item)
			if s == "null" {
				hasNull = true
			} else if s != "" {
				nonNullTypes = append(nonNullTypes, s)
			}
		}
		firstType := "string"
		if len(nonNullTypes) > 0 {
			firstType = nonNullTypes[0]
		}
		m["type"] = firstType

		if len(nonNullTypes) > 1 {
			appendHint(m, fmt.Sprintf("Accepts: %s", strings.Join(nonNullTypes, " | ")))
		}
		if hasNull {
			if objPath, fieldName, ok := propertyContext(*path); ok {
				appendHint(m, "(nullable)")
				key := pathKeyString(objPath)
				if nullableFields[key] == nil {
					nullableFields[key] = map[string]struct{}{}
				}
				nullableFields[key][fieldName] = struct{}{}
			}
		}
	}

	for k, v := range m {
		child := v
		*path = append(*path, pathSegment{key: k})
		flattenTypeArraysInner(&child, path, nullableFields)
		*path = (*path)[:len(*path)-1]
		m[k] = child
	}
}

// --- step 10/11: remove unsupported keywords ---

func removeUnsupportedKeywords(node *any, inPropertiesMap bool) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				removeUnsupportedKeywords(&arr[i], false)
			}
		}
		return
	}

	fixedKeywords := map[string]struct{}{
		"$schema": {}, "$defs": {}, "definitions": {}, "const": {},
		"$ref": {}, "additionalProperties": {}, "propertyNames": {},
	}
	for _, k := range unsupportedConstraints {
		fixedKeywords[k] = struct{}{}
	}

	if !inPropertiesMap {
		for key := range m {
			_, isFixed := fixedKeywords[key]
			isExtension := strings.HasPrefix(key, "x-")
			if isFixed || isExtension {
				delete(m, key)
			}
		}
	}

	for k, v := range m {
		child := v
		removeUnsupportedKeywords(&child, k == "properties")
		m[k] = child
	}
}

func removeKeywords(node *any, inPropertiesMap bool, keywords []string) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				removeKeywords(&arr[i], false, keywords)
			}
		}
		return
	}
	if !inPropertiesMap {
		for _, kw := range keywords {
			delete(m, kw)
		}
	}
	for k, v := range m {
		child := v
		removeKeywords(&child, k == "properties", keywords)
		m[k] = child
	}
}

func removePlaceholderFields(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				removePlaceholderFields(&arr[i])
			}
		}
		return
	}

	removeUnderscore := false
	removeReason := false
	if props, ok := m["properties"].(map[string]any); ok {
		if _, has := props["_"]; has {
			delete(props, "_")
			removeUnderscore = true
		}
		if reasonNode, has := props["reason"]; has && len(props) == 1 {
			if reasonMap, ok := reasonNode.(map[string]any); ok {
				if desc, _ := reasonMap["description"].(string); desc == placeholderReasonDescription {
					delete(props, "reason")
					removeReason = true
				}
			}
		}
	}
	if removeUnderscore {
		removeRequiredEntry(m, "_")
	}
	if removeReason {
		removeRequiredEntry(m, "reason")
	}

	for k, v := range m {
		child := v
		removePlaceholderFields(&child)
		m[k] = child
	}
}

// --- step 12: required-field cleanup ---

func cleanupRequiredFields(node *any) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				cleanupRequiredFields(&arr[i])
			}
		}
		return
	}

	if props, ok := m["properties"].(map[string]any); ok {
		if reqArr, ok := m["required"].([]any); ok {
			valid := make([]any, 0, len(reqArr))
			for _, r := range reqArr {
				s, ok := r.(string)
				if !ok {
					continue
				}
				if _, exists := props[s]; exists {
					valid = append(valid, s)
				}
			}
			if len(valid) != len(reqArr) {
				if len(valid) == 0 {
					delete(m, "required")
				} else {
					m["required"] = valid
				}
			}
		}
	}

	for k, v := range m {
		child := v
		cleanupRequiredFields(&child)
		m[k] = child
	}
}

// --- step 13: Antigravity empty-schema placeholder ---

func addEmptySchemaPlaceholder(node *any, path *[]pathSegment) {
	m, ok := (*node).(map[string]any)
	if !ok {
		if arr, isArr := (*node).([]any); isArr {
			for i := range arr {
				*path = append(*path, pathSegment{index: i, isIndex: true})
				addEmptySchemaPlaceholder(&arr[i], path)
				*path = (*path)[:len(*path)-1]
			}
		}
		return
	}

	for k, v := range m {
		child := v
		*path = append(*path, pathSegment{key: k})
		addEmptySchemaPlaceholder(&child, path)
		*path = (*path)[:len(*path)-1]
		m[k] = child
	}

	isObject, _ := m["type"].(string)
	if isObject != "object" {
		return
	}

	propsNode, hasProps := m["properties"].(map[string]any)
	propsEmpty := !hasProps || len(propsNode) == 0
	hasRequired := false
	if reqArr, ok := m["required"].([]any); ok && len(reqArr) > 0 {
		hasRequired = true
	}

	if !hasProps || propsEmpty {
		if !hasProps {
			propsNode = map[string]any{}
			m["properties"] = propsNode
		}
		propsNode["reason"] = map[string]any{
			"type":        "string",
			"description": placeholderReasonDescription,
		}
		m["required"] = []any{"reason"}
		return
	}

	if hasProps && !hasRequired && len(*path) > 0 {
		if _, has := propsNode["_"]; !has {
			propsNode["_"] = map[string]any{"type": "boolean"}
		}
		m["required"] = []any{"_"}
	}
}

// --- shared helpers ---

func valueToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func appendHint(m map[string]any, hint string) {
	existing, _ := m["description"].(string)
	if existing == "" {
		m["description"] = hint
	} else {
		m["description"] = fmt.Sprintf("%s (%s)", existing, hint)
	}
}

func appendHintToValue(v *any, hint string) {
	if m, ok := (*v).(map[string]any); ok {
		appendHint(m, hint)
	}
}

func mergeDescriptionInValue(v *any, parentDesc string) {
	if parentDesc == "" {
		return
	}
	m, ok := (*v).(map[string]any)
	if !ok {
		return
	}
	childDesc, _ := m["description"].(string)
	if childDesc == "" {
		m["description"] = parentDesc
	} else if childDesc != parentDesc {
		m["description"] = fmt.Sprintf("%s (%s)", parentDesc, childDesc)
	}
}

func selectBest(items []any) (int, []string) {
	bestIdx := 0
	bestScore := -1
	var types []string

	for idx, item := range items {
		m, _ := item.(map[string]any)
		t, _ := m["type"].(string)
		_, hasProps := m["properties"]
		_, hasItems := m["items"]

		var score int
		switch {
		case t == "object" || hasProps:
			if t == "" {
				t = "object"
			}
			score = 3
		case t == "array" || hasItems:
			if t == "" {
				t = "array"
			}
			score = 2
		case t != "" && t != "null":
			score = 1
		default:
			if t == "" {
				t = "null"
			}
			score = 0
		}

		if t != "" {
			types = append(types, t)
		}
		if score > bestScore {
			bestScore = score
			bestIdx = idx
		}
	}
	return bestIdx, types
}

func propertyContext(path []pathSegment) ([]pathSegment, string, bool) {
	if len(path) < 2 {
		return nil, "", false
	}
	parent := path[len(path)-2]
	field := path[len(path)-1]
	if parent.isIndex || field.isIndex || parent.key != "properties" {
		return nil, "", false
	}
	return append([]pathSegment(nil), path[:len(path)-2]...), field.key, true
}

func pathKeyString(path []pathSegment) string {
	var sb strings.Builder
	for _, seg := range path {
		if seg.isIndex {
			sb.WriteString(fmt.Sprintf("[%d]", seg.index))
		} else {
			sb.WriteString(".")
			sb.WriteString(seg.key)
		}
	}
	return sb.String()
}

func getMutAtPathKey(root *any, pathKey string) *any {
	if pathKey == "" {
		return root
	}
	current := root
	i := 0
	for i < len(pathKey) {
		switch pathKey[i] {
		case '.':
			j := i + 1
			for j < len(pathKey) && pathKey[j] != '.' && pathKey[j] != '[' {
				j++
			}
			key := pathKey[i+1 : j]
			m, ok := (*current).(map[string]any)
			if !ok {
				return nil
			}
			child, has := m[key]
			if !has {
				return nil
			}
			current = &child
			m[key] = child
			i = j
		case '[':
			j := i + 1
			for j < len(pathKey) && pathKey[j] != ']' {
				j++
			}
			idx, err := strconv.Atoi(pathKey[i+1 : j])
			if err != nil {
				return nil
			}
			arr, ok := (*current).([]any)
			if !ok || idx >= len(arr) {
				return nil
			}
			current = &arr[idx]
			i = j + 1
		default:
			i++
		}
	}
	return current
}

func removeRequiredEntry(m map[string]any, field string) {
	reqArr, ok := m["required"].([]any)
	if !ok {
		return
	}
	filtered := make([]any, 0, len(reqArr))
	for _, r := range reqArr {
		if s, ok := r.(string); ok && s == field {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		delete(m, "required")
	} else {
		m["required"] = filtered
	}
}
