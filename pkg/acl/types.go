package acl

// WildcardCommand matches every command.
const WildcardCommand = "*"

// Entry grants one subject a privilege over a set of commands.
type Entry struct {
	// Subject is the lowercase hex fingerprint of the peer identity key.
	Subject string

	// Commands lists the granted command names, or WildcardCommand.
	Commands []string

	// Privilege caps which commands the entry can grant.
	Privilege Privilege
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	e.Commands = append([]string(nil), e.Commands...)
	return e
}

// hasCommand reports whether the entry lists command or the wildcard.
func (e *Entry) hasCommand(command string) bool {
	for _, c := range e.Commands {
		if c == WildcardCommand || c == command {
			return true
		}
	}
	return false
}
