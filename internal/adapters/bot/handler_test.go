package bot

import "testing"

func TestCommandPayload(t *testing.T) {
	if got := commandPayload("/mystats alice", "/mystats"); got != "alice" {
		t.Fatalf("ожидалось alice, получено %q", got)
	}
	if got := commandPayload("/mystats@pulse_bot  42 ", "/mystats"); got != "42" {
		t.Fatalf("ожидалось 42, получено %q", got)
	}
	if got := commandPayload("/mystats", "/mystats"); got != "" {
		t.Fatalf("ожидалась пустая строка, получено %q", got)
	}
	if got := commandPayload("/mystats@pulse_bot", "/mystats"); got != "" {
		t.Fatalf("ожидалась пустая строка для голого упоминания, получено %q", got)
	}
}
