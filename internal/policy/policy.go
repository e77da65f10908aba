// Package policy decides who may log in and who is an admin.
//
// Both decisions are driven by externally configured email lists, loaded
// once at startup and immutable for the process lifetime.
package policy

import "strings"

// AccessControl holds the configured admin and allowlist email sets.
// All lookups are case-insensitive.
type AccessControl struct {
	admins  map[string]struct{}
	allowed map[string]struct{}
}

// New builds an AccessControl from the configured email lists.
func New(adminEmails, allowedEmails []string) *AccessControl {
	ac := &AccessControl{
		admins:  make(map[string]struct{}, len(adminEmails)),
		allowed: make(map[string]struct{}, len(allowedEmails)),
	}
	for _, email := range adminEmails {
		ac.admins[normalize(email)] = struct{}{}
	}
	for _, email := range allowedEmails {
		ac.allowed[normalize(email)] = struct{}{}
	}
	return ac
}

// Authorize reports whether the given email may log in.
//
// With an empty allowlist, provider authentication alone suffices and the
// admin list only controls elevation. With a non-empty allowlist, the email
// must be on it, except that admins are always let in: an operator can run
// "admins only" with just ADMIN_EMAILS, or "admins plus guests" with both
// lists.
func (ac *AccessControl) Authorize(email string) bool {
	if len(ac.allowed) == 0 {
		return true
	}

	key := normalize(email)
	if _, ok := ac.allowed[key]; ok {
		return true
	}
	_, ok := ac.admins[key]
	return ok
}

// IsAdmin reports whether the given email is on the admin list.
func (ac *AccessControl) IsAdmin(email string) bool {
	_, ok := ac.admins[normalize(email)]
	return ok
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
