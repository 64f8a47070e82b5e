package assignor

import (
	"sort"
)

// AllowList is a read-only set of email addresses granted the admin claim.
// Membership is exact and case-sensitive: no trimming, no lower-casing.
type AllowList struct {
	emails map[string]struct{}
}

// NewAllowList builds an AllowList from the given emails.
// Empty strings are skipped so that a user without an email never matches.
func NewAllowList(emails []string) AllowList {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if email == "" {
			continue
		}
		set[email] = struct{}{}
	}
	return AllowList{emails: set}
}

// Contains reports whether email is in the list
func (l AllowList) Contains(email string) bool {
	if email == "" {
		return false
	}
	_, ok := l.emails[email]
	return ok
}

// Len returns the number of distinct emails
func (l AllowList) Len() int {
	return len(l.emails)
}

// Emails returns the members in sorted order
func (l AllowList) Emails() []string {
	list := make([]string, 0, len(l.emails))
	for email := range l.emails {
		list = append(list, email)
	}
	sort.Strings(list)
	return list
}
