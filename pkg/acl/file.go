package acl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Parse reads ACL entries, one per line:
//
//	<fingerprint> <privilege> <command>[,<command>...]
//
// Blank lines and lines starting with '#' are ignored. Fingerprints may
// contain colons and upper case; they are normalized.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("acl: line %d: want 3 fields, got %d", line, len(fields))
		}
		priv, err := ParsePrivilege(fields[1])
		if err != nil {
			return nil, fmt.Errorf("acl: line %d: %w", line, err)
		}
		entry := Entry{
			Subject:   strings.ToLower(strings.ReplaceAll(fields[0], ":", "")),
			Privilege: priv,
			Commands:  strings.Split(fields[2], ","),
		}
		if err := ValidateEntry(&entry); err != nil {
			return nil, fmt.Errorf("acl: line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Format writes entries in the format Parse reads.
func Format(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", e.Subject, strings.ToLower(e.Privilege.String()), strings.Join(e.Commands, ",")); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile parses the ACL file at path into a new Checker.
func LoadFile(path string, opts ...CheckerOption) (*Checker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, err
	}
	c := NewChecker(opts...)
	if err := c.SetEntries(entries); err != nil {
		return nil, err
	}
	return c, nil
}
