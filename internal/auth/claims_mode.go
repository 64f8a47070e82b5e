package auth

import (
	"errors"
	"fmt"
	"strings"

	firebaseAuth "firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
)

// ClaimsMode selects how the admin claim is written
type ClaimsMode string

const (
	// ClaimsModeReplace overwrites the whole custom claims map with {admin: true}
	ClaimsModeReplace ClaimsMode = "replace"
	// ClaimsModeMerge reads the current claims and adds admin: true
	ClaimsModeMerge ClaimsMode = "merge"
)

// Valid reports whether m is a known mode
func (m ClaimsMode) Valid() bool {
	return m == ClaimsModeReplace || m == ClaimsModeMerge
}

// ParseClaimsMode converts a config string into a ClaimsMode.
// An empty string yields ClaimsModeReplace.
func ParseClaimsMode(s string) (ClaimsMode, error) {
	if s == "" {
		return ClaimsModeReplace, nil
	}
	mode := ClaimsMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", fmt.Errorf("unsupported claims mode: %q (supported: replace, merge)", s)
	}
	return mode, nil
}

// IsTransient reports whether err from the Admin SDK is worth retrying.
// User-not-found, invalid argument and permission errors are permanent.
//
// The SDK classifies errors by asserting *FirebaseError directly, so the
// wrap chain is walked and each link is checked on its own.
func IsTransient(err error) bool {
	var target interface{ Timeout() bool }
	if errors.As(err, &target) && target.Timeout() {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if firebaseAuth.IsUserNotFound(e) {
			return false
		}
		if errorutils.IsUnavailable(e) ||
			errorutils.IsInternal(e) ||
			errorutils.IsDeadlineExceeded(e) ||
			errorutils.IsResourceExhausted(e) ||
			errorutils.IsAborted(e) {
			return true
		}
	}
	return false
}
