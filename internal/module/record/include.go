package record

import (
	"context"

	"gorm.io/gorm"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/model"
	"github.com/simp-lee/goboot/internal/query"
)

// expand loads the related entities named in include onto records with
// one query per relation. Unknown names are ignored. Has-many fields are
// always set, to an empty list when nothing matched.
func (c *Catalog) expand(ctx context.Context, db *gorm.DB, codec model.Codec, t *model.Type, records []*model.Record, include []string) error {
	if len(records) == 0 || len(include) == 0 {
		return nil
	}
	rels := c.relations[t.Name()]

	for _, name := range include {
		rel, ok := rels[name]
		if !ok {
			continue
		}
		target, ok := c.registry.Lookup(rel.target)
		if !ok {
			continue
		}

		keys := make([]any, 0, len(records))
		seen := make(map[int64]struct{}, len(records))
		for _, rec := range records {
			k, ok := keyOf(rec, rel.ownerKey)
			if !ok {
				continue
			}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}

		byKey := make(map[int64][]*model.Record)
		if len(keys) > 0 {
			gw := &query.Gateway{Type: target, Codec: codec}
			related, err := gw.GetAll(ctx, db, []query.Clause{query.In(rel.targetKey, keys...)}, 0, 0, query.OrderBy{}.Asc("id"), nil)
			if err != nil {
				return err
			}
			for _, r := range related {
				if k, ok := keyOf(r, rel.targetKey); ok {
					byKey[k] = append(byKey[k], r)
				}
			}
		}

		for _, rec := range records {
			k, ok := keyOf(rec, rel.ownerKey)
			matches := byKey[k]
			switch {
			case rel.many:
				items := make([]any, 0, len(matches))
				if ok {
					for _, m := range matches {
						items = append(items, m)
					}
				}
				rec.Set(name, items)
			case ok && len(matches) > 0:
				rec.Set(name, matches[0])
			}
		}
	}
	return nil
}

func keyOf(rec *model.Record, field string) (int64, bool) {
	v, ok := rec.Get(field)
	if !ok || v == nil {
		return 0, false
	}
	k, err := cast.To(v, cast.Int)
	if err != nil || k == nil {
		return 0, false
	}
	return k.(int64), true
}
