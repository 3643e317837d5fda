package templates

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		uid      int64
		expected string
	}{
		{"Alice", 7, "Alice_7"},
		{"Jiří Novák", 12, "Jiri_Novak_12"},
		{"  Mary-Jane ", 3, "Mary-Jane_3"},
		{"../../etc", 1, "______etc_1"},
		{"李", 5, "__5"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := Key(tt.name, tt.uid); got != tt.expected {
				t.Errorf("Key(%q, %d) = %q, want %q", tt.name, tt.uid, got, tt.expected)
			}
		})
	}
}
