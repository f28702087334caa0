package pg

import (
	"fmt"
	"sort"
	"strings"

	"labops/internal/store"
)

// GenerateDDL returns a map of key -> SQL for every registry table. Keys
// sort into apply order: tables first, then indexes. All DDL is idempotent
// (create ... if not exists) so auto-migrate can run on every boot.
func GenerateDDL() map[string]string {
	out := make(map[string]string, len(store.Registry)+1)

	keys := make([]string, 0, len(store.Registry))
	for k := range store.Registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tables strings.Builder
	var indexes strings.Builder
	for _, fqn := range keys {
		e := store.Registry[fqn]
		fmt.Fprintf(&tables, `create table if not exists %s (
  "id" text primary key,
  "version" bigint not null,
  "created_at" timestamp with time zone not null,
  "updated_at" timestamp with time zone not null,
  "deleted" boolean not null default false,
  "data" jsonb not null
);
`, e.Table)

		// btree over common jsonb lookups
		for _, f := range e.Fields {
			if f.Type == store.TRef || f.Name == "category" || f.Name == "status" || f.Name == "code" {
				fmt.Fprintf(&indexes,
					"create index if not exists %s_%s_ix on %s ((data->>'%s'));\n",
					e.Table, f.Name, e.Table, f.Name)
			}
		}
	}

	// reference identity is (category, code) among live rows
	fmt.Fprintf(&indexes,
		"create unique index if not exists core_reference_items_cat_code_uq on core_reference_items ((data->>'category'), (data->>'code')) where not deleted;\n")

	out["000_tables"] = tables.String()
	out["100_indexes"] = indexes.String()
	return out
}
