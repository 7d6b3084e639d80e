package gateway

import "context"

// Scoped is a Gateway view restricted to one owner. Every filter gets an
// owner condition and every written record carries the owner id, so no call
// made through it can reach another user's rows.
type Scoped struct {
	gw     Gateway
	userID string
}

// ForUser returns the view of gw owned by userID.
func ForUser(gw Gateway, userID string) *Scoped {
	return &Scoped{gw: gw, userID: userID}
}

// UserID returns the owner this view is scoped to.
func (s *Scoped) UserID() string { return s.userID }

func (s *Scoped) filters(in []Filter) []Filter {
	out := make([]Filter, 0, len(in)+1)
	out = append(out, Eq(OwnerField, s.userID))
	for _, f := range in {
		if f.Field == OwnerField {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (s *Scoped) own(rec Record) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[OwnerField] = s.userID
	return out
}

func (s *Scoped) ListWhere(ctx context.Context, collection string, filters []Filter, order *Order) ([]Record, error) {
	return s.gw.ListWhere(ctx, collection, s.filters(filters), order)
}

func (s *Scoped) GetOne(ctx context.Context, collection string, filters []Filter) (Record, bool, error) {
	return s.gw.GetOne(ctx, collection, s.filters(filters))
}

func (s *Scoped) Insert(ctx context.Context, collection string, rec Record) (Record, error) {
	return s.gw.Insert(ctx, collection, s.own(rec))
}

func (s *Scoped) Update(ctx context.Context, collection string, filters []Filter, patch Record) error {
	p := make(Record, len(patch))
	for k, v := range patch {
		if k == OwnerField {
			continue
		}
		p[k] = v
	}
	return s.gw.Update(ctx, collection, s.filters(filters), p)
}

// Upsert always includes the owner in the conflict target.
func (s *Scoped) Upsert(ctx context.Context, collection string, conflict []string, rec Record) (Record, error) {
	keys := []string{OwnerField}
	for _, k := range conflict {
		if k != OwnerField {
			keys = append(keys, k)
		}
	}
	return s.gw.Upsert(ctx, collection, keys, s.own(rec))
}

func (s *Scoped) DeleteWhere(ctx context.Context, collection string, filters []Filter) error {
	return s.gw.DeleteWhere(ctx, collection, s.filters(filters))
}

var _ Gateway = (*Scoped)(nil)
