package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves the keystore passphrase at most once, from an environment
// variable when set and from an interactive terminal prompt otherwise.
type Source struct {
	envVar string

	once  sync.Once
	value string
	err   error
}

// NewSource returns a source that consults envVar before prompting.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar)}
}

// Get returns the passphrase, resolving it on the first call and caching the
// result. Whitespace-only passphrases are rejected so a keystore is never
// written without real protection.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	return s.prompt()
}

func (s *Source) prompt() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("key passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("key passphrase required and no terminal available")
	}

	fmt.Fprint(os.Stderr, "Enter key passphrase: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("key passphrase cannot be empty")
	}
	return string(raw), nil
}
