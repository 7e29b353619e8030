package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5511999999999", "5511999999999"},
		{"5511999999999:12", "5511999999999"},
		{"5511999999999.0:1", "5511999999999"},
		{"+55 (11) 99999-9999", "5511999999999"},
		{"abc", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValid(t *testing.T) {
	if Valid("123456789") {
		t.Error("9 digits should not be valid")
	}
	if !Valid("1234567890") {
		t.Error("10 digits should be valid")
	}
}

func TestToJID(t *testing.T) {
	jid := ToJID("5511999999999")
	if jid.User != "5511999999999" {
		t.Errorf("unexpected user %q", jid.User)
	}
	if jid.Server != "s.whatsapp.net" {
		t.Errorf("unexpected server %q", jid.Server)
	}
}
