package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// InvalidWildcardMessage is reported to clients for malformed patterns
const InvalidWildcardMessage = "You can only use wildcards in layer names directly after a name separator (e.g. osm.*)"

// ErrInvalidWildcard is returned for wildcard tokens other than "<prefix>.*"
var ErrInvalidWildcard = errors.New("invalid wildcard in layer name")

// ErrUnknownLayer is returned by NameFromID for ids not in the registry
var ErrUnknownLayer = errors.New("unknown layer")

// ValidateToken checks the wildcard placement of a layer-name token.
// Tokens without '*' are always accepted.
func ValidateToken(token string) error {
	if !strings.Contains(token, "*") {
		return nil
	}
	if utf8.RuneCountInString(token) >= 3 &&
		strings.Count(token, "*") == 1 &&
		strings.Count(token, ".*") == 1 &&
		strings.HasSuffix(token, ".*") {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidWildcard, token)
}

// Resolve maps one layer-name token to layer ids. A literal name yields
// at most one id; "<prefix>.*" yields every layer whose name starts with
// "<prefix>.". An unknown name is an empty result, not an error.
func (r *Registry) Resolve(ctx context.Context, token string) ([]int64, error) {
	if err := ValidateToken(token); err != nil {
		return nil, err
	}
	names, err := r.loadedNames(ctx)
	if err != nil {
		return nil, err
	}
	return match(names, token), nil
}

// ResolveAll resolves every token and returns the deduplicated union of
// their ids in first-seen order.
func (r *Registry) ResolveAll(ctx context.Context, tokens []string) ([]int64, error) {
	for _, token := range tokens {
		if err := ValidateToken(token); err != nil {
			return nil, err
		}
	}
	names, err := r.loadedNames(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var ids []int64
	for _, token := range tokens {
		for _, id := range match(names, token) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// NameFromID returns the name of a registered layer
func (r *Registry) NameFromID(ctx context.Context, id int64) (string, error) {
	if err := r.EnsureLoaded(ctx); err != nil {
		return "", err
	}
	l, err := r.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	if l == nil {
		return "", fmt.Errorf("%w: %d", ErrUnknownLayer, id)
	}
	return l.Name, nil
}

func (r *Registry) loadedNames(ctx context.Context) (map[string]int64, error) {
	if err := r.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return r.Names(ctx)
}

// match assumes token already passed ValidateToken
func match(names map[string]int64, token string) []int64 {
	star := strings.Index(token, "*")
	if star < 0 {
		if id, ok := names[token]; ok {
			return []int64{id}
		}
		return nil
	}

	prefix := token[:star]
	var ids []int64
	for name, id := range names {
		if strings.HasPrefix(name, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
