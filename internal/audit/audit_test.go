package audit

import "testing"

func TestEntryString(t *testing.T) {
	entry := Entry{Origin: "10.0.0.2", Actor: "Moderator", Action: ActionBan, Detail: "User1234: spam"}
	want := "Moderator ban (origin=10.0.0.2): User1234: spam"
	if got := entry.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	entry = Entry{Origin: "10.0.0.1", Actor: "User1234", Action: ActionConnected}
	want = "User1234 connected (origin=10.0.0.1)"
	if got := entry.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
