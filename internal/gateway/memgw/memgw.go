// Package memgw is an in-memory gateway.Gateway. It backs tests and the
// "memory" storage driver used for local development without Postgres.
package memgw

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/ironlog/internal/gateway"
)

// Gateway keeps every collection as an insertion-ordered slice of records.
// Values are normalized through JSON so comparisons behave the same way no
// matter which Go types a caller used.
type Gateway struct {
	mu          sync.Mutex
	collections map[string][]gateway.Record
}

// New returns an empty in-memory gateway.
func New() *Gateway {
	return &Gateway{collections: make(map[string][]gateway.Record)}
}

var _ gateway.Gateway = (*Gateway)(nil)

func (g *Gateway) ListWhere(_ context.Context, collection string, filters []gateway.Filter, order *gateway.Order) ([]gateway.Record, error) {
	fs, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []gateway.Record
	for _, rec := range g.collections[collection] {
		if matches(rec, fs) {
			out = append(out, copyRecord(rec))
		}
	}
	if order != nil {
		slices.SortStableFunc(out, func(a, b gateway.Record) int {
			c := compare(a[order.Field], b[order.Field])
			if order.Desc {
				return -c
			}
			return c
		})
	}
	return out, nil
}

func (g *Gateway) GetOne(ctx context.Context, collection string, filters []gateway.Filter) (gateway.Record, bool, error) {
	recs, err := g.ListWhere(ctx, collection, filters, nil)
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}

func (g *Gateway) Insert(_ context.Context, collection string, rec gateway.Record) (gateway.Record, error) {
	n, err := normalize(rec)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertLocked(collection, n), nil
}

// insertLocked appends an already normalized record. g.mu must be held.
func (g *Gateway) insertLocked(collection string, n gateway.Record) gateway.Record {
	if id, _ := n["id"].(string); id == "" {
		n["id"] = uuid.NewString()
	}
	g.collections[collection] = append(g.collections[collection], n)
	return copyRecord(n)
}

func (g *Gateway) Update(_ context.Context, collection string, filters []gateway.Filter, patch gateway.Record) error {
	fs, err := normalizeFilters(filters)
	if err != nil {
		return err
	}
	p, err := normalize(patch)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rec := range g.collections[collection] {
		if !matches(rec, fs) {
			continue
		}
		for k, v := range p {
			rec[k] = v
		}
	}
	return nil
}

func (g *Gateway) Upsert(_ context.Context, collection string, conflict []string, rec gateway.Record) (gateway.Record, error) {
	n, err := normalize(rec)
	if err != nil {
		return nil, err
	}
	keys := make([]gateway.Filter, 0, len(conflict))
	for _, k := range conflict {
		v, ok := n[k]
		if !ok {
			return nil, fmt.Errorf("upsert %s: conflict field %q missing from record", collection, k)
		}
		keys = append(keys, gateway.Eq(k, v))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.collections[collection] {
		if !matches(existing, keys) {
			continue
		}
		if id, ok := existing["id"]; ok {
			if _, set := n["id"]; !set {
				n["id"] = id
			}
		}
		g.collections[collection][i] = n
		return copyRecord(n), nil
	}
	return g.insertLocked(collection, n), nil
}

func (g *Gateway) DeleteWhere(_ context.Context, collection string, filters []gateway.Filter) error {
	fs, err := normalizeFilters(filters)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.collections[collection] = slices.DeleteFunc(g.collections[collection], func(rec gateway.Record) bool {
		return matches(rec, fs)
	})
	return nil
}

// Len returns the number of records in a collection.
func (g *Gateway) Len(collection string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.collections[collection])
}

func normalize(rec gateway.Record) (gateway.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("normalizing record: %w", err)
	}
	var out gateway.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalizing record: %w", err)
	}
	if out == nil {
		out = gateway.Record{}
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

func normalizeFilters(filters []gateway.Filter) ([]gateway.Filter, error) {
	out := make([]gateway.Filter, len(filters))
	for i, f := range filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("normalizing filter %s: %w", f.Field, err)
		}
		out[i] = gateway.Filter{Field: f.Field, Op: f.Op, Value: v}
	}
	return out, nil
}

func matches(rec gateway.Record, filters []gateway.Filter) bool {
	for _, f := range filters {
		v := rec[f.Field]
		switch f.Op {
		case gateway.OpGte:
			if v == nil || compare(v, f.Value) < 0 {
				return false
			}
		case gateway.OpLte:
			if v == nil || compare(v, f.Value) > 0 {
				return false
			}
		default:
			if !reflect.DeepEqual(v, f.Value) {
				return false
			}
		}
	}
	return true
}

// compare orders numbers numerically, timestamps chronologically and
// everything else by its string form. nil sorts first.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			return cmp.Compare(fa, fb)
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	ta, errA := time.Parse(time.RFC3339Nano, sa)
	tb, errB := time.Parse(time.RFC3339Nano, sb)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return cmp.Compare(sa, sb)
}

func copyRecord(rec gateway.Record) gateway.Record {
	out, err := normalize(rec)
	if err != nil {
		// Records are normalized on the way in, so re-encoding cannot fail.
		panic(err)
	}
	return out
}
