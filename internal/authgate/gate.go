package authgate

import (
	"context"
	"fmt"
	"strings"
)

// ErrEmailNotAllowed is returned when an email passes neither the allow-list
// nor the institutional domain check. Its message is shown to the user.
type ErrEmailNotAllowed struct {
	Domain string
}

func (e *ErrEmailNotAllowed) Error() string {
	return fmt.Sprintf("only %s emails may sign in", e.Domain)
}

// Gate decides whether an email may create an account or complete a
// sign-in. It runs before account creation and before every sign-in;
// a rejection aborts the whole auth operation, so no partial account
// state is ever created.
type Gate struct {
	allowed map[string]struct{}
	domain  string
}

// New creates a Gate. allowList is a comma-separated list of exact email
// matches (case-insensitive, whitespace-trimmed); domain is the
// institutional suffix, e.g. "@school.edu".
func New(allowList, domain string) *Gate {
	allowed := map[string]struct{}{}
	for _, entry := range strings.Split(allowList, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			allowed[entry] = struct{}{}
		}
	}
	return &Gate{allowed: allowed, domain: strings.ToLower(domain)}
}

// BeforeCreate is the pre-account-creation hook.
func (g *Gate) BeforeCreate(ctx context.Context, email string) error {
	return g.check(email)
}

// BeforeSignIn is the pre-sign-in hook, run on every sign-in completion.
func (g *Gate) BeforeSignIn(ctx context.Context, email string) error {
	return g.check(email)
}

// check applies, in order: the allow-list (unconditional accept), then the
// institutional domain suffix. Anything else is denied.
func (g *Gate) check(email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if _, ok := g.allowed[normalized]; ok {
		return nil
	}
	if g.domain != "" && strings.HasSuffix(normalized, g.domain) {
		return nil
	}
	return &ErrEmailNotAllowed{Domain: g.domain}
}
