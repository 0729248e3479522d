package shard

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
)

// StaticLoader serves shards already held in memory, such as a fresh build
// result.
type StaticLoader struct {
	shards map[string]*index.Shard
}

// NewStaticLoader wraps shards. Empty shards are treated as absent.
func NewStaticLoader(shards map[string]*index.Shard) *StaticLoader {
	kept := make(map[string]*index.Shard, len(shards))
	for k, s := range shards {
		if s != nil && s.Len() > 0 {
			kept[k] = s
		}
	}
	return &StaticLoader{shards: kept}
}

func (l *StaticLoader) Has(key string) bool {
	_, ok := l.shards[key]
	return ok
}

func (l *StaticLoader) Load(_ context.Context, key string) (*index.Shard, error) {
	s, ok := l.shards[key]
	if !ok {
		return nil, fmt.Errorf("no shard %q", key)
	}
	return s, nil
}
