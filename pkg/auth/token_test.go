package auth

import "testing"

func TestNewVerificationTokenHashesToken(t *testing.T) {
	token, hash, err := NewVerificationToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d", len(token))
	}
	if hash == token || hash != HashToken(token) {
		t.Fatalf("stored hash must be sha256 of the mailed token")
	}
	other, _, _ := NewVerificationToken()
	if other == token {
		t.Fatalf("tokens must be random")
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain text ", "plain text"},
		{"<b>Spam</b> report", "Spam report"},
		{"hello<script>alert(1)</script> world", "hello world"},
		{"a &amp; b", "a & b"},
	}
	for _, tc := range tests {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Fatalf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
