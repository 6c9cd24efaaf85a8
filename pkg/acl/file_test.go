package acl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	colons := strings.ToUpper(strings.Repeat("b2:", 31) + "b2")
	input := "# gateway ACL\n\n" +
		alice + " operate open_door,close_door\n" +
		colons + " view *\n"

	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Parse() returned %d entries, want 2", len(entries))
	}
	if entries[0].Privilege != PrivilegeOperate || len(entries[0].Commands) != 2 || entries[0].Commands[1] != "close_door" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Subject != bob {
		t.Errorf("entry 1 subject = %s, want normalized %s", entries[1].Subject, bob)
	}
	if entries[1].Commands[0] != WildcardCommand {
		t.Errorf("entry 1 commands = %v, want [*]", entries[1].Commands)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", alice + " view\n"},
		{"too many fields", alice + " view status extra\n"},
		{"bad privilege", alice + " root status\n"},
		{"bad subject", "nothex view status\n"},
		{"empty command", alice + " view status,,open\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Parse() error = nil")
			}
			if !strings.Contains(err.Error(), "line 1") {
				t.Errorf("Parse() error %q does not name the line", err)
			}
		})
	}
}

func TestFormatParse(t *testing.T) {
	entries := []Entry{
		{Subject: alice, Privilege: PrivilegeAdminister, Commands: []string{"add_key", "remove_key"}},
		{Subject: bob, Privilege: PrivilegeView, Commands: []string{"status"}},
	}

	var buf bytes.Buffer
	if err := Format(&buf, entries); err != nil {
		t.Fatal(err)
	}
	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse(Format()) error = %v", err)
	}
	if len(got) != 2 || got[0].Privilege != PrivilegeAdminister || got[1].Subject != bob {
		t.Errorf("Parse(Format()) = %+v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acl.txt")
	if err := os.WriteFile(path, []byte(alice+" operate open_door\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := c.Check(alice, "open_door"); got != ResultAllowed {
		t.Errorf("Check() = %s, want Allowed", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadFile(missing) error = nil")
	}
	if _, err := LoadFile(path, WithMaxEntries(0)); err != ErrTooManyEntries {
		t.Errorf("LoadFile() over limit error = %v, want ErrTooManyEntries", err)
	}
}
