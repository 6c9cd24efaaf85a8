package acl

import "sync"

// DefaultMaxEntries limits the number of ACL entries a Checker holds.
const DefaultMaxEntries = 1024

// Checker performs access control checks against an ACL.
type Checker struct {
	mu         sync.RWMutex
	entries    []Entry
	required   map[string]Privilege
	maxEntries int
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithMaxEntries sets the maximum number of entries.
func WithMaxEntries(max int) CheckerOption {
	return func(c *Checker) {
		c.maxEntries = max
	}
}

// NewChecker creates a new access control checker with no entries.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		required:   make(map[string]Privilege),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Require sets the privilege a command requires. Commands without a
// registered privilege require PrivilegeOperate.
func (c *Checker) Require(command string, p Privilege) error {
	if err := ValidateCommand(command); err != nil {
		return err
	}
	if !p.IsValid() {
		return ErrInvalidPrivilege
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.required[command] = p
	return nil
}

// Required returns the privilege command requires.
func (c *Checker) Required(command string) Privilege {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requiredLocked(command)
}

func (c *Checker) requiredLocked(command string) Privilege {
	if p, ok := c.required[command]; ok {
		return p
	}
	return PrivilegeOperate
}

// SetEntries validates and replaces all ACL entries.
// Entries are copied to prevent external modification.
func (c *Checker) SetEntries(entries []Entry) error {
	if len(entries) > c.maxEntries {
		return ErrTooManyEntries
	}
	copied := make([]Entry, len(entries))
	for i := range entries {
		if err := ValidateEntry(&entries[i]); err != nil {
			return err
		}
		copied[i] = entries[i].Clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = copied
	return nil
}

// Entries returns a copy of all ACL entries.
func (c *Checker) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Entry, len(c.entries))
	for i := range c.entries {
		result[i] = c.entries[i].Clone()
	}
	return result
}

// AddEntry adds an ACL entry. Returns error if entry is invalid.
func (c *Checker) AddEntry(entry Entry) error {
	if err := ValidateEntry(&entry); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		return ErrTooManyEntries
	}
	c.entries = append(c.entries, entry.Clone())
	return nil
}

// RemoveSubject deletes every entry for subject and returns how many were
// removed.
func (c *Checker) RemoveSubject(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.Subject != subject {
			kept = append(kept, e)
		}
	}
	removed := len(c.entries) - len(kept)
	c.entries = kept
	return removed
}

// Check evaluates whether subject may run command.
// First matching entry grants access; no match means denied.
func (c *Checker) Check(subject, command string) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	required := c.requiredLocked(command)
	for i := range c.entries {
		entry := &c.entries[i]

		if entry.Subject != subject {
			continue
		}
		if !entry.Privilege.Grants(required) {
			continue
		}
		if !entry.hasCommand(command) {
			continue
		}
		return ResultAllowed
	}
	return ResultDenied
}
