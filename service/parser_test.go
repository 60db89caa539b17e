package service

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRecordFencedJSON(t *testing.T) {
	rec, err := ParseRecord("```json\n{\"a\":1}\n```")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := rec.Get("a", ""); got != "1" {
		t.Errorf("Expected '1', got '%s'", got)
	}
}

func TestParseRecordPlainJSON(t *testing.T) {
	rec, err := ParseRecord(`{"Bill No":"1160","Weight":"27540"}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.Len() != 2 {
		t.Errorf("Expected 2 fields, got %d", rec.Len())
	}
	if got := rec.Get("Bill No", ""); got != "1160" {
		t.Errorf("Expected '1160', got '%s'", got)
	}
}

func TestParseRecordPreservesKeyOrder(t *testing.T) {
	rec, err := ParseRecord(`{"Contract No":"C-9","Bill No":"1160","Date":"12/07/2024","Weight":"27540"}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []string{"Contract No", "Bill No", "Date", "Weight"}
	keys := rec.Keys()
	if len(keys) != len(expected) {
		t.Fatalf("Expected %d keys, got %d", len(expected), len(keys))
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Errorf("Expected key '%s' at position %d, got '%s'", k, i, keys[i])
		}
	}
}

func TestParseRecordNotJSON(t *testing.T) {
	raw := "not json"
	_, err := ParseRecord(raw)
	if err == nil {
		t.Fatal("Expected error for non-JSON input")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected *ParseError, got %T", err)
	}
	// The original text must survive for diagnostic display
	if parseErr.Raw != raw {
		t.Errorf("Expected raw text '%s', got '%s'", raw, parseErr.Raw)
	}
}

func TestParseRecordNonObjectTopLevel(t *testing.T) {
	_, err := ParseRecord(`["a","b"]`)
	if err == nil {
		t.Fatal("Expected error for array top level")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected *ParseError, got %T", err)
	}
	if !strings.Contains(parseErr.Reason, "not an object") {
		t.Errorf("Expected 'not an object' reason, got '%s'", parseErr.Reason)
	}
}

func TestCleanModelText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fence with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading language tag", `json {"a":1}`, `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanModelText(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
