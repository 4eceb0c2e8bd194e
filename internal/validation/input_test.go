package validation

import (
	"strings"
	"testing"
)

func TestValidateAccountName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"simple", "default", false},
		{"with separators", "work-eu.prod_1", false},
		{"leading dash", "-work", true},
		{"spaces", "my account", true},
		{"colon", "account:index", true},
		{"too long", strings.Repeat("a", MaxAccountNameLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccountName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAccountName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMessageText(t *testing.T) {
	if err := ValidateMessageText("hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateMessageText("   "); err == nil {
		t.Error("blank text should be rejected")
	}
	if err := ValidateMessageText(strings.Repeat("x", MaxMessageLength+1)); err == nil {
		t.Error("oversized text should be rejected")
	}
}

func TestValidateRoutingKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"standard", "agent:main:main", false},
		{"single segment", "agent", false},
		{"uppercase", "Agent:main", true},
		{"empty segment", "agent::main", true},
		{"spaces", "agent:main ", true},
		{"too long", strings.Repeat("a", MaxRoutingKeyLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoutingKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRoutingKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
