package identity

import "testing"

func TestParseNickname(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"alice", true},
		{"Alice_", false}, // '_' is not one of the accepted specials
		{"[test]", true},
		{"-bad", false},
		{"1bad", false},
		{"", false},
		{"toolongnickname", true}, // truncated to 9, still valid
	}

	for _, tt := range tests {
		got, ok := ParseNickname(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseNickname(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && len(got) > MaxNickLength {
			t.Errorf("ParseNickname(%q) = %q, exceeds max length", tt.input, got)
		}
	}
}

func TestParseChannelName(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
		kind  ChannelKind
	}{
		{"#chat", true, ChannelKindNetwork},
		{"&local", true, ChannelKindLocal},
		{"+modeless", true, ChannelKindModeless},
		{"!12345safe", true, ChannelKindSafe},
		{"chat", false, ChannelKindUnknown},
		{"#has space", false, ChannelKindUnknown},
		{"#has,comma", false, ChannelKindUnknown},
		{"#has:colon", false, ChannelKindUnknown},
		{"#", false, ChannelKindUnknown},
		{"!1234", false, ChannelKindUnknown},
	}

	for _, tt := range tests {
		got, ok := ParseChannelName(tt.input, 0)
		if ok != tt.ok {
			t.Errorf("ParseChannelName(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got.Kind() != tt.kind {
			t.Errorf("ParseChannelName(%q).Kind() = %v, want %v", tt.input, got.Kind(), tt.kind)
		}
	}
}

func TestParseTopicLength(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	if _, ok := ParseTopic(string(long), 390); ok {
		t.Errorf("expected topic exceeding max length to be rejected")
	}
	if _, ok := ParseTopic("short topic", 390); !ok {
		t.Errorf("expected short topic to be accepted")
	}
}
