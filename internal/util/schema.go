package util

import (
	"reflect"
	"strconv"
	"strings"
)

// CreateSchema derives the JSON schema of a tool's argument struct. The
// result is what the oracle sees as the tool's parameters and what the
// registry validates arguments against.
//
// Supported struct tags:
//
//	json:"name,omitempty"  property name; omitempty or pointer fields are optional
//	description:"..."      property description shown to the oracle
//	pattern:"^...$"        regular expression constraint for strings
//	minLength:"N"          minimum string length
//	maxLength:"N"          maximum string length
//	enum:"a|b|c"           allowed string values
//
// Required properties are listed in field order.
func CreateSchema(args any) map[string]any {
	t := reflect.TypeOf(args)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]any{}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, optional, skip := jsonName(field)
		if skip {
			continue
		}

		properties[name] = propertySchema(field)
		if !optional && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// jsonName resolves the property name from the json tag.
func jsonName(field reflect.StructField) (name string, omitempty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

func propertySchema(field reflect.StructField) map[string]any {
	ft := field.Type
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}

	prop := map[string]any{"type": jsonType(ft)}
	if ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
		prop["items"] = map[string]any{"type": jsonType(ft.Elem())}
	}

	tag := field.Tag
	if v := tag.Get("description"); v != "" {
		prop["description"] = v
	}
	if v := tag.Get("pattern"); v != "" {
		prop["pattern"] = v
	}
	if n, err := strconv.Atoi(tag.Get("minLength")); err == nil && n > 0 {
		prop["minLength"] = n
	}
	if n, err := strconv.Atoi(tag.Get("maxLength")); err == nil && n > 0 {
		prop["maxLength"] = n
	}
	if v := tag.Get("enum"); v != "" {
		values := strings.Split(v, "|")
		enum := make([]any, len(values))
		for i, s := range values {
			enum[i] = s
		}
		prop["enum"] = enum
	}
	return prop
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}
