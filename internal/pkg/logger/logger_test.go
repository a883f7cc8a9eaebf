package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"trailing@", "***@***"},
		{"", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMask(t *testing.T) {
	if got := mask("subscriber_email", "john.doe@example.com"); got != "jo***@example.com" {
		t.Errorf("email key not masked: %q", got)
	}
	if got := mask("detail", "bounced for john.doe@example.com yesterday"); got != "bounced for jo***@example.com yesterday" {
		t.Errorf("embedded address not scrubbed: %q", got)
	}
	if got := mask("count", "42"); got != "42" {
		t.Errorf("plain value changed: %q", got)
	}
}
