// Package normalizer maps symbol display names to the canonical lookup key
// used for matching and sorting, and to the shard bucket the key lives in.
// Lower-casing is followed by collapsing every run of non-alphanumeric runes
// into a single separator; matching ignores separators entirely.
//
// Buckets are keyed by the first rune of the canonical key when it is an
// ASCII letter. Keys starting with a digit or any non-ASCII letter, such as
// "émile", share the fallback bucket "_". Build and query route through
// ShardOf alike, so such keys are always found there.
package normalizer

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
)

const (
	// Separator joins words in the collapsed form of a key.
	Separator = '_'
	// FallbackShard receives keys that do not start with an ASCII letter.
	FallbackShard = "_"
	// NumShards is the number of buckets in the scheme: a-z plus fallback.
	NumShards = 27
)

// Key is the normalized form of a display name.
type Key struct {
	// Canonical is lower-case and separator-free; it is the matching and
	// sort key.
	Canonical string
	// Collapsed keeps one separator between words, e.g. "message_view".
	Collapsed string
	// Shard is the bucket the key belongs to.
	Shard string
}

// Normalize computes the Key for a display name. It fails with
// ErrInvalidSymbolName when the name is empty or has no letter or digit.
func Normalize(displayName string) (Key, error) {
	if strings.TrimSpace(displayName) == "" {
		return Key{}, fmt.Errorf("%w: empty display name", apperrors.ErrInvalidSymbolName)
	}
	collapsed := Collapse(displayName)
	if collapsed == "" {
		return Key{}, fmt.Errorf("%w: %q has no alphanumeric characters", apperrors.ErrInvalidSymbolName, displayName)
	}
	canonical := strings.ReplaceAll(collapsed, string(Separator), "")
	return Key{
		Canonical: canonical,
		Collapsed: collapsed,
		Shard:     ShardOf(canonical),
	}, nil
}

// Collapse lower-cases s and replaces each run of non-alphanumeric runes with
// a single Separator. Leading and trailing separators are dropped.
func Collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteRune(Separator)
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Canonical returns the separator-free lookup form of s, or "" when s has no
// letter or digit. Unlike Normalize it never fails, which suits query text.
func Canonical(s string) string {
	return strings.ReplaceAll(Collapse(s), string(Separator), "")
}

// ShardOf returns the bucket for a canonical key.
func ShardOf(canonical string) string {
	if canonical == "" {
		return FallbackShard
	}
	c := canonical[0]
	if c >= 'a' && c <= 'z' {
		return string(c)
	}
	return FallbackShard
}

// ShardKeys lists every bucket in slot order.
func ShardKeys() []string {
	keys := make([]string, 0, NumShards)
	for c := 'a'; c <= 'z'; c++ {
		keys = append(keys, string(c))
	}
	return append(keys, FallbackShard)
}

// SlotIndex maps a bucket to its position in ShardKeys. The second result is
// false for strings outside the scheme.
func SlotIndex(shardKey string) (int, bool) {
	if shardKey == FallbackShard {
		return NumShards - 1, true
	}
	if len(shardKey) != 1 || shardKey[0] < 'a' || shardKey[0] > 'z' {
		return 0, false
	}
	return int(shardKey[0] - 'a'), true
}
