package identity

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRandomUsernameScheme(t *testing.T) {
	for i := 0; i < 100; i++ {
		name := randomUsername()
		if !strings.HasPrefix(name, "User") {
			t.Fatalf("unexpected username %q", name)
		}
		if len(name) != len("User")+4 {
			t.Fatalf("expected 4-digit suffix, got %q", name)
		}
	}
}

func TestRandomTagCharsetAndLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		tag := randomTag()
		if len(tag) != TagLength {
			t.Fatalf("expected %d characters, got %q", TagLength, tag)
		}
		for _, c := range tag {
			if !strings.ContainsRune(tagCharset, c) {
				t.Fatalf("tag %q contains %q outside the alphabet", tag, c)
			}
		}
	}
}

func TestRandomAvatarFromPalette(t *testing.T) {
	for i := 0; i < 50; i++ {
		avatar := randomAvatar()
		found := false
		for _, p := range Palette {
			if avatar == p {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("avatar %q not in palette", avatar)
		}
	}
}

func TestSanitizeUsername(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"alice", "alice", true},
		{"  alice  ", "alice", true},
		{"", "", false},
		{"   ", "", false},
		{string([]byte{0xff, 0xfe}), "", false},
		{strings.Repeat("x", 40), strings.Repeat("x", MaxUsernameLen), true},
		// 24 bytes is exactly 8 of these runes; cap hits a boundary.
		{strings.Repeat("界", 10), strings.Repeat("界", 8), true},
		// Byte 24 lands mid-rune; the cut must back up to byte 23.
		{"ab" + strings.Repeat("界", 8), "ab" + strings.Repeat("界", 7), true},
	}
	for _, tc := range cases {
		got, ok := sanitizeUsername(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("sanitizeUsername(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
		if !utf8.ValidString(got) {
			t.Errorf("sanitizeUsername(%q) produced invalid UTF-8 %q", tc.in, got)
		}
	}
}
