package handoff

import "testing"

func TestExtractContact(t *testing.T) {
	cases := []struct {
		in   string
		want Extracted
	}{
		{"reach me at Jo.Smith@Example.com.", Extracted{Email: "jo.smith@example.com"}},
		{"call (555) 123-4567", Extracted{Phone: "+15551234567"}},
		{"+1 555 123 4567 works", Extracted{Phone: "+15551234567"}},
		{"text", Extracted{Choice: ChannelSMS}},
		{"Text me please", Extracted{Choice: ChannelSMS}},
		{"I'll chat here", Extracted{Choice: ChannelChat}},
		{"let's stay in chat", Extracted{Choice: ChannelChat}},
		{"context matters", Extracted{}},
		{"a1234567890@mail.com", Extracted{Email: "a1234567890@mail.com"}},
	}
	for _, tc := range cases {
		got := ExtractContact(tc.in)
		if got != tc.want {
			t.Errorf("ExtractContact(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestFingerprintCaseInsensitiveEmail(t *testing.T) {
	a := Fingerprint(Contact{Email: "A@B.co"}, ChannelEmail)
	b := Fingerprint(Contact{Email: "a@b.co"}, ChannelEmail)
	if a != b {
		t.Fatalf("expected equal fingerprints, got %q and %q", a, b)
	}
}
