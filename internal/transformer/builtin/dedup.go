package builtin

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"churn/internal/schema"
	"churn/internal/table"
)

// DeDup collapses duplicate entities to one row per key.
//
// Rows are stably sorted by Key ascending, then by each Order column
// descending; nulls sort last everywhere. The first row of every non-null key
// wins, so the survivor is the row with the highest first Order column, ties
// broken by the next one, then by input order. Rows with a null key are never
// merged with each other and pass through at the end.
type DeDup struct {
	Key   string
	Order []string
}

// NewDeDup builds the contract's dedup policy.
func NewDeDup(c *schema.Contract) DeDup {
	return DeDup{Key: c.Key(), Order: c.DedupOrder()}
}

func (d DeDup) Apply(in arrow.Record) (arrow.Record, error) {
	key, ok := table.Column(in, d.Key)
	if !ok {
		return nil, &schema.SchemaError{Column: d.Key, Reason: "identifier column is missing"}
	}
	order := make([]arrow.Array, len(d.Order))
	for i, name := range d.Order {
		col, ok := table.Column(in, name)
		if !ok {
			return nil, fmt.Errorf("dedup: no order column %q", name)
		}
		order[i] = col
	}

	n := int(in.NumRows())
	keys := make([]any, n)
	for i := range keys {
		keys[i] = table.Value(key, i)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		a, b := idx[x], idx[y]
		if c := table.Compare(keys[a], keys[b]); c != 0 {
			return c < 0
		}
		for _, col := range order {
			if c := descending(table.Value(col, a), table.Value(col, b)); c != 0 {
				return c < 0
			}
		}
		return false
	})

	keep := make([]int, 0, n)
	var last any
	for i, r := range idx {
		k := keys[r]
		if k != nil && i > 0 && table.Compare(k, last) == 0 {
			continue
		}
		keep = append(keep, r)
		last = k
	}
	return table.Take(in, keep)
}

// descending orders a before b when a is larger; nulls go last.
func descending(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return table.Compare(b, a)
}
