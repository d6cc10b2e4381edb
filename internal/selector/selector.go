// Package selector resolves which remote objects a parquet ingestion run
// should load, given a key pattern with a {{DATE}} token and a selection
// policy.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gnosischain/click-runner/internal/storage"
)

// DateToken marks where the date-formatted path segment appears in a
// pattern, e.g. "assets/data/{{DATE}}.parquet".
const DateToken = "{{DATE}}"

// DateLayout is the calendar date shape expected in object keys.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidPattern means the pattern does not contain exactly one
	// date token. This is a configuration error, raised before any
	// network call.
	ErrInvalidPattern = errors.New("pattern must contain exactly one {{DATE}} token")

	// ErrNotFound means the date policy matched no object.
	ErrNotFound = errors.New("no object found for requested date")
)

// StorageError wraps an object listing failure.
type StorageError struct {
	Prefix string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("object storage unavailable (prefix %q): %v", e.Prefix, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Policy determines which matching objects a run ingests.
type Policy string

const (
	// PolicyLatest selects the single object with the maximum date.
	PolicyLatest Policy = "latest"

	// PolicyDate selects the object(s) whose date equals the reference date.
	PolicyDate Policy = "date"

	// PolicyAll selects every matching object in ascending date order.
	PolicyAll Policy = "all"
)

// ParsePolicy validates a policy string from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyLatest, PolicyDate, PolicyAll:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown selection policy %q (want latest, date, or all)", s)
	}
}

// Pattern is a parsed key pattern: fixed prefix, date segment, fixed suffix.
type Pattern struct {
	Prefix string
	Suffix string
}

// ParsePattern splits a key pattern around its single {{DATE}} token.
func ParsePattern(s string) (Pattern, error) {
	if strings.Count(s, DateToken) != 1 {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}

	prefix, suffix, _ := strings.Cut(s, DateToken)
	return Pattern{Prefix: prefix, Suffix: suffix}, nil
}

// Descriptor identifies one ingestible object and the date extracted from
// its key. Descriptors are totally ordered by date, ties broken by
// lexical key order.
type Descriptor struct {
	Key  string
	Date time.Time
}

// Match extracts a Descriptor from an object key, reporting whether the
// key fits the pattern's date-format shape.
func (p Pattern) Match(key string) (Descriptor, bool) {
	if !strings.HasPrefix(key, p.Prefix) || !strings.HasSuffix(key, p.Suffix) {
		return Descriptor{}, false
	}

	middle := key[len(p.Prefix) : len(key)-len(p.Suffix)]
	date, err := time.Parse(DateLayout, middle)
	if err != nil {
		return Descriptor{}, false
	}

	return Descriptor{Key: key, Date: date}, true
}

// Select enumerates objects under the pattern's fixed prefix and picks a
// subset per policy. Enumeration is fresh on every call.
// Parameters:
//   - ctx: context for the listing call.
//   - store: object storage to enumerate.
//   - pattern: raw key pattern containing one {{DATE}} token.
//   - policy: latest, date, or all.
//   - refDate: reference date, required by the date policy.
// Returns:
//   - []Descriptor: selected objects in ascending date order.
//   - error: ErrInvalidPattern, *StorageError, or ErrNotFound (date policy).
func Select(ctx context.Context, store storage.ObjectStore, pattern string, policy Policy, refDate time.Time) ([]Descriptor, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}

	objects, err := store.List(ctx, p.Prefix)
	if err != nil {
		return nil, &StorageError{Prefix: p.Prefix, Err: err}
	}

	var matches []Descriptor
	for _, obj := range objects {
		if d, ok := p.Match(obj.Key); ok {
			matches = append(matches, d)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Date.Equal(matches[j].Date) {
			return matches[i].Date.Before(matches[j].Date)
		}
		return matches[i].Key < matches[j].Key
	})

	switch policy {
	case PolicyLatest:
		if len(matches) == 0 {
			return nil, nil
		}
		return matches[len(matches)-1:], nil

	case PolicyDate:
		var selected []Descriptor
		for _, d := range matches {
			if d.Date.Equal(refDate) {
				selected = append(selected, d)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: %s under %q", ErrNotFound, refDate.Format(DateLayout), p.Prefix)
		}
		return selected, nil

	case PolicyAll:
		return matches, nil

	default:
		return nil, fmt.Errorf("unknown selection policy %q", policy)
	}
}
