package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestInputValidator_Clean(t *testing.T) {
	v := NewInputValidator()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "What is 2+2", "What is 2+2", false},
		{"short", "hi", "hi", false},
		{"collapses whitespace", "  show\t recent \n errors ", "show recent errors", false},
		{"blank", "   \n\t", "", true},
		{"empty", "", "", true},
		{"too long", strings.Repeat("a", MaxQueryLength+1), "", true},
		{"at limit", strings.Repeat("é", MaxQueryLength), strings.Repeat("é", MaxQueryLength), false},
		{"invalid utf8", "bad \xff byte", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Clean(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Clean() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInputValidator_EmptyError(t *testing.T) {
	if err := NewInputValidator().Validate(" "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestInputValidator_WithMaxLength(t *testing.T) {
	v := NewInputValidator().WithMaxLength(5)
	if err := v.Validate("abcdef"); err == nil {
		t.Fatal("expected error above custom limit")
	}
	if err := NewInputValidator().WithMaxLength(0).Validate("abcdef"); err != nil {
		t.Fatalf("expected default limit to stay, got %v", err)
	}
}

func TestOutputValidator_Clean(t *testing.T) {
	v := NewOutputValidator()

	tests := []struct {
		input string
		want  string
	}{
		{"4", "4"},
		{"  answer \n", "answer"},
		{"<think>\nlet me see\n</think>\n\nThe queue is full.", "The queue is full."},
		{"<think>only thoughts</think>", NoAnswer},
		{"", NoAnswer},
	}

	for _, tt := range tests {
		if got := v.Clean(tt.input); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
