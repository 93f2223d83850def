package commandstructure

import (
	"testing"
)

func TestGetStringParam(t *testing.T) {
	params := map[string]any{
		"key1": "value1",
		"key2": 123,
	}

	if val := GetStringParam(params, "key1", "default"); val != "value1" {
		t.Errorf("Expected 'value1', got '%s'", val)
	}
	if val := GetStringParam(params, "key2", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}
	if val := GetStringParam(params, "key3", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}
}

func TestGetIntParam(t *testing.T) {
	params := map[string]any{
		"int":     123,
		"int64":   int64(456),
		"float":   float64(789),
		"numeric": " 42 ",
		"text":    "not-an-int",
	}

	tests := []struct {
		key  string
		want int
	}{
		{"int", 123},
		{"int64", 456},
		{"float", 789},
		{"numeric", 42},
		{"text", 999},
		{"missing", 999},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := GetIntParam(params, tt.key, 999); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGetFloatParam(t *testing.T) {
	params := map[string]any{
		"float": 0.9,
		"int":   2,
		"text":  "x",
	}

	if got := GetFloatParam(params, "float", 0); got != 0.9 {
		t.Errorf("Expected 0.9, got %v", got)
	}
	if got := GetFloatParam(params, "int", 0); got != 2 {
		t.Errorf("Expected 2, got %v", got)
	}
	if got := GetFloatParam(params, "text", 1.5); got != 1.5 {
		t.Errorf("Expected default 1.5, got %v", got)
	}
}

func TestGetBoolParam(t *testing.T) {
	params := map[string]any{
		"bool":    true,
		"upper":   "TRUE",
		"false":   "false",
		"garbage": "maybe",
	}

	if !GetBoolParam(params, "bool", false) {
		t.Error("Expected true for bool value")
	}
	if !GetBoolParam(params, "upper", false) {
		t.Error("Expected true for 'TRUE'")
	}
	if GetBoolParam(params, "false", true) {
		t.Error("Expected false for 'false'")
	}
	if !GetBoolParam(params, "garbage", true) {
		t.Error("Expected default for unparseable value")
	}
	if GetBoolParam(params, "missing", false) {
		t.Error("Expected default for missing value")
	}
}

func TestValidateRequiredParams(t *testing.T) {
	params := map[string]any{
		"param1": "value1",
		"param2": 123,
	}

	if err := ValidateRequiredParams(params, []string{"param1", "param2"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := ValidateRequiredParams(params, []string{"param1", "param3"}); err == nil {
		t.Error("Expected error for missing required param")
	}
	if err := ValidateRequiredParams(params, []string{}); err != nil {
		t.Errorf("Expected no error for empty required list, got %v", err)
	}
}
