package acl

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrInvalidSubject   = errors.New("acl: invalid subject")
	ErrInvalidPrivilege = errors.New("acl: invalid privilege")
	ErrInvalidCommand   = errors.New("acl: invalid command")
	ErrNoCommands       = errors.New("acl: entry must list at least one command")
	ErrTooManyEntries   = errors.New("acl: too many entries")
)

// SubjectSize is the decoded length of a subject fingerprint.
const SubjectSize = 32

// ValidateEntry checks if an ACL entry is valid.
// Returns nil if valid, or an error describing the validation failure.
//
// Validation rules:
//   - Subject must be a 64-character lowercase hex fingerprint
//   - Privilege must be View, Operate or Administer
//   - At least one command; commands are non-empty and contain no
//     whitespace or commas
func ValidateEntry(entry *Entry) error {
	if err := ValidateSubject(entry.Subject); err != nil {
		return err
	}
	if !entry.Privilege.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidPrivilege, entry.Privilege)
	}
	if len(entry.Commands) == 0 {
		return ErrNoCommands
	}
	for _, c := range entry.Commands {
		if err := ValidateCommand(c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSubject checks a subject fingerprint.
func ValidateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSubject)
	}
	if strings.ToLower(subject) != subject {
		return fmt.Errorf("%w: fingerprint must be lowercase", ErrInvalidSubject)
	}
	b, err := hex.DecodeString(subject)
	if err != nil || len(b) != SubjectSize {
		return fmt.Errorf("%w: %q is not a %d-byte hex fingerprint", ErrInvalidSubject, subject, SubjectSize)
	}
	return nil
}

// ValidateCommand checks a command name.
func ValidateCommand(command string) error {
	if command == "" || strings.ContainsAny(command, " \t\r\n,#") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
	return nil
}
