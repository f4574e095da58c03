package mask

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"*", "anything", true},
		{"foo", "foo", true},
		{"foo", "bar", false},
		{"f?o", "foo", true},
		{"f?o", "fooo", false},
		{"*.example.com", "host.example.com", true},
		{"*.example.com", "example.com", false},
		{"bad*user", "baduser", true},
		{"bad*user", "bad-very-bad-user", true},
		{"a*b*c", "axxxbxxxc", true},
		{"a*b*c", "axxxbxxx", false},
	}

	for _, tt := range tests {
		got := Match(tt.pattern, tt.input)
		if got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.input, got, tt.want)
		}
	}
}

func TestMatchesUserHost(t *testing.T) {
	if !MatchesUserHost("*!*@192.168.*", "alice", "alice", "192.168.1.1") {
		t.Errorf("expected ban mask to match")
	}
	if MatchesUserHost("*!*@10.0.*", "alice", "alice", "192.168.1.1") {
		t.Errorf("expected ban mask not to match")
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	if !Match("NICK!*@*", "nick!user@host") {
		t.Errorf("expected case-insensitive match")
	}
}
