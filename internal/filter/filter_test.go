package filter

import (
	"encoding/json"
	"testing"
)

func TestNormalizeExpression(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain expression", ".name", ".name"},
		{"escaped bang", `.[] | select(.active \!= false)`, `.[] | select(.active != false)`},
		{"no escapes", `.[] | select(.port == 8545)`, `.[] | select(.port == 8545)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeExpression(tt.input); got != tt.expected {
				t.Errorf("NormalizeExpression(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestApply(t *testing.T) {
	data := map[string]any{
		"accounts": []any{
			map[string]any{"name": "main", "connected": true},
			map[string]any{"name": "ops", "connected": false},
		},
	}

	tests := []struct {
		name       string
		expression string
		wantJSON   string
		wantErr    bool
	}{
		{"empty passes through", "", `{"accounts":[{"connected":true,"name":"main"},{"connected":false,"name":"ops"}]}`, false},
		{"field access", ".accounts[0].name", `"main"`, false},
		{"select", `[.accounts[] | select(.connected)] | length`, `1`, false},
		{"multiple results collected", ".accounts[].name", `["main","ops"]`, false},
		{"parse error", ".[", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(data, tt.expression)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			encoded, err := json.Marshal(got)
			if err != nil {
				t.Fatal(err)
			}
			if string(encoded) != tt.wantJSON {
				t.Errorf("Apply() = %s, want %s", encoded, tt.wantJSON)
			}
		})
	}
}

func TestApplyFromJSON(t *testing.T) {
	got, err := ApplyFromJSON([]byte(`{"port": 8545}`), ".port")
	if err != nil {
		t.Fatal(err)
	}
	if got != float64(8545) {
		t.Errorf("ApplyFromJSON() = %v, want 8545", got)
	}

	if _, err := ApplyFromJSON([]byte(`not json`), "."); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestApplyToJSON(t *testing.T) {
	out, err := ApplyToJSON([]byte(`{"a": {"b": 1}}`), ".a")
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"b\": 1\n}"
	if string(out) != want {
		t.Errorf("ApplyToJSON() = %q, want %q", out, want)
	}

	raw := []byte(`{"a":1}`)
	out, err = ApplyToJSON(raw, "")
	if err != nil || string(out) != `{"a":1}` {
		t.Errorf("ApplyToJSON(empty) = %q, %v", out, err)
	}
}
