package bot

import (
	"testing"

	"github.com/google/uuid"
)

func TestCommandName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/new", "new"},
		{"/skip", "skip"},
		{"/reject abc не то фото", "reject"},
		{"/approve@questbot 123", "approve"},
		{"/cancel ", "cancel"},
	}
	for _, tc := range cases {
		if got := commandName(tc.in); got != tc.want {
			t.Errorf("commandName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOffers(t *testing.T) {
	o := newOffers()
	questID := uuid.New()

	if _, ok := o.get(1); ok {
		t.Error("empty store reports an offer")
	}
	o.set(1, questID)
	got, ok := o.get(1)
	if !ok || got != questID {
		t.Errorf("get = %v, %v", got, ok)
	}
	o.clear(1)
	if _, ok := o.get(1); ok {
		t.Error("cleared offer still visible")
	}
}

func TestParseProgressArg(t *testing.T) {
	id := uuid.New()
	if got, ok := parseProgressArg([]string{id.String(), "extra"}); !ok || got != id {
		t.Errorf("parseProgressArg = %v, %v", got, ok)
	}
	if _, ok := parseProgressArg(nil); ok {
		t.Error("accepted empty args")
	}
	if _, ok := parseProgressArg([]string{"not-a-uuid"}); ok {
		t.Error("accepted malformed id")
	}
}
