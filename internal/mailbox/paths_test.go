package mailbox

import "testing"

func TestScheme_Path(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		region  Region
		session string
		id      string
		want    string
	}{
		{"no root", "", RegionRequests, "s1", "req-1", "mailbox/requests/s1/req-1.edn"},
		{"with root", "team-a", RegionResponses, "s1", "req-1", "team-a/mailbox/responses/s1/req-1.edn"},
		{"root slashes trimmed", "/team-a/", RegionProcessed, "s1", "req-1", "team-a/mailbox/processed/s1/req-1.edn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheme(tt.root, ".edn")
			got, err := s.Path(tt.region, tt.session, tt.id)
			if err != nil {
				t.Fatalf("Path() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Path() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScheme_PathRejectsEmpty(t *testing.T) {
	s := NewScheme("", ".edn")

	if _, err := s.Path(RegionRequests, "", "req-1"); !IsValidation(err) {
		t.Errorf("empty session: err = %v, want ValidationError", err)
	}
	if _, err := s.Path(RegionRequests, "s1", ""); !IsValidation(err) {
		t.Errorf("empty id: err = %v, want ValidationError", err)
	}
	if _, err := s.Path(Region("archive"), "s1", "req-1"); !IsValidation(err) {
		t.Errorf("unknown region: err = %v, want ValidationError", err)
	}
}

func TestScheme_Prefixes(t *testing.T) {
	s := NewScheme("root", ".edn")

	if got := s.RegionPrefix(RegionRequests); got != "root/mailbox/requests/" {
		t.Errorf("RegionPrefix() = %q", got)
	}
	if got := s.SessionPrefix(RegionResponses, "s1"); got != "root/mailbox/responses/s1/" {
		t.Errorf("SessionPrefix() = %q", got)
	}
}

func TestScheme_ParseRoundTrip(t *testing.T) {
	for _, root := range []string{"", "nested/root"} {
		s := NewScheme(root, ".edn")
		key, err := s.Path(RegionRequests, "gateway-session-1", "req-1-abcd")
		if err != nil {
			t.Fatalf("Path() error = %v", err)
		}

		session, id, ok := s.Parse(RegionRequests, key)
		if !ok {
			t.Fatalf("Parse(%q) not ok", key)
		}
		back, err := s.Path(RegionRequests, session, id)
		if err != nil {
			t.Fatalf("Path() error = %v", err)
		}
		if back != key {
			t.Errorf("round trip = %q, want %q", back, key)
		}
	}
}

func TestScheme_ParseRejects(t *testing.T) {
	s := NewScheme("", ".edn")

	keys := []string{
		"mailbox/requests/.gitkeep",
		"mailbox/requests/s1/.gitkeep",
		"mailbox/requests/s1/req-1.json",
		"mailbox/requests/req-1.edn",
		"mailbox/requests/a/b/req-1.edn",
		"mailbox/responses/s1/req-1.edn",
		"other/requests/s1/req-1.edn",
		"mailbox/requests//req-1.edn",
	}
	for _, key := range keys {
		if _, _, ok := s.Parse(RegionRequests, key); ok {
			t.Errorf("Parse(%q) ok, want rejected", key)
		}
	}
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"s1", "gateway-session-1700000000000", "req-1.v2", "a_b"}
	for _, id := range valid {
		if err := ValidateIdentifier("id", id); err != nil {
			t.Errorf("ValidateIdentifier(%q) = %v, want nil", id, err)
		}
	}

	long := make([]byte, 257)
	for i := range long {
		long[i] = 'a'
	}
	invalid := []string{"", ".", "..", "a/b", "../etc", `a\b`, "a\x00b", "line\nbreak", string(long)}
	for _, id := range invalid {
		if err := ValidateIdentifier("id", id); !IsValidation(err) {
			t.Errorf("ValidateIdentifier(%q) = %v, want ValidationError", id, err)
		}
	}
}
