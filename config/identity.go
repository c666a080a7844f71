package config

import (
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/xerrors"
)

var identityRe = regexp.MustCompile(`^[0-9]{1,3}$`)

// Identity is the worker name reported to the pools, e.g. "v007".
type Identity string

// ParseIdentity validates a worker number of 1 to 3 decimal digits and
// formats it into the canonical worker name.
func ParseIdentity(s string) (Identity, error) {
	if !identityRe.MatchString(s) {
		return "", xerrors.Errorf("invalid worker number %q: expected 1 to 3 digits", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return "", xerrors.Errorf("invalid worker number %q: %w", s, err)
	}
	return Identity(fmt.Sprintf("v%03d", n)), nil
}

func (i Identity) String() string {
	return string(i)
}
