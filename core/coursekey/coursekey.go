// Package coursekey parses and composes course run references of the form
// `course-v1:<org>+<number>+<run>`. A run segment equal to the TEMPLATE
// sentinel marks a course meant to be cloned into a fresh run rather than
// enrolled into directly.
package coursekey

import (
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// Prefix is the canonical course run key namespace.
	Prefix = "course-v1:"

	// TemplateRun is the sentinel run segment marking a template course.
	TemplateRun = "TEMPLATE"

	// runTokenFormat yields second precision; the fractional part is appended
	// separately since time.Format cannot emit microseconds without a dot.
	runTokenFormat = "20060102150405"
)

var (
	ErrInvalidKey = errors.New("invalid course key")

	segmentRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

type (
	// Key is a parsed course run reference.
	Key struct {
		Org    string
		Number string
		Run    string
	}

	// TemplateID identifies a course irrespective of its run; together with a
	// classroom it is the provisioning de-duplication key.
	TemplateID struct {
		Org    string
		Number string
	}
)

// Parse parses a course run reference; the `course-v1:` prefix is optional.
// Malformed references return ErrInvalidKey and must not be coerced by callers.
func Parse(s string) (Key, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), Prefix)
	parts := strings.Split(raw, "+")
	if len(parts) != 3 {
		return Key{}, errors.Wrapf(ErrInvalidKey, "%q", s)
	}
	for _, part := range parts {
		if !segmentRegex.MatchString(part) {
			return Key{}, errors.Wrapf(ErrInvalidKey, "%q", s)
		}
	}
	return Key{Org: parts[0], Number: parts[1], Run: parts[2]}, nil
}

func (k Key) String() string {
	return Prefix + k.Org + "+" + k.Number + "+" + k.Run
}

// IsTemplate reports whether the run segment is the TEMPLATE sentinel.
func (k Key) IsTemplate() bool {
	return k.Run == TemplateRun
}

// Template strips the run segment.
func (k Key) Template() TemplateID {
	return TemplateID{Org: k.Org, Number: k.Number}
}

// Resolve returns a copy of the key with the run segment replaced by token.
func (k Key) Resolve(token string) Key {
	k.Run = token
	return k
}

func (t TemplateID) String() string {
	return t.Org + "+" + t.Number
}

// Resolve substitutes the run segment of ref with token, keeping the textual
// form of the input.
func Resolve(ref, token string) (string, error) {
	key, err := Parse(ref)
	if err != nil {
		return "", err
	}
	resolved := key.Resolve(token).String()
	if !strings.HasPrefix(ref, Prefix) {
		resolved = strings.TrimPrefix(resolved, Prefix)
	}
	return resolved, nil
}

// DeriveRunToken derives a run token from t with microsecond precision, e.g.
// `20260829103205000042`. Tokens are digits only and therefore always safe to
// embed in a run segment. Two calls with timestamps at least 1µs apart yield
// distinct tokens.
func DeriveRunToken(t time.Time) string {
	micros := t.Nanosecond() / int(time.Microsecond)
	frac := [6]byte{}
	for i := 5; i >= 0; i-- {
		frac[i] = byte('0' + micros%10)
		micros /= 10
	}
	return t.Format(runTokenFormat) + string(frac[:])
}
