package query_test

import (
	"testing"

	"github.com/JaimeStill/rtoval/pkg/query"
)

const selectResults = "SELECT r.id, r.session_id, r.requirement_type, r.status, r.updated_at FROM public.validation_results r"

func resultsProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "validation_results", "r").
		Project("id", "ID").
		Project("session_id", "SessionID").
		Project("requirement_type", "RequirementType").
		Project("status", "Status").
		Project("updated_at", "UpdatedAt")
}

func ptr[T any](v T) *T { return &v }

func TestProjectionMap(t *testing.T) {
	p := resultsProjection()

	if got, want := p.Table(), "public.validation_results r"; got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
	if got := p.Alias(); got != "r" {
		t.Errorf("Alias() = %q, want r", got)
	}
	if got := len(p.ColumnList()); got != 5 {
		t.Errorf("ColumnList() length = %d, want 5", got)
	}

	tests := []struct {
		name     string
		viewName string
		want     string
	}{
		{"mapped", "SessionID", "r.session_id"},
		{"unmapped passthrough", "unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Column(tt.viewName); got != tt.want {
				t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
			}
		})
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{"empty", "", nil},
		{"single ascending", "Status", []query.SortField{{Field: "Status"}}},
		{"single descending", "-UpdatedAt", []query.SortField{{Field: "UpdatedAt", Descending: true}}},
		{
			"mixed with spaces and empty parts",
			" Status ,, -UpdatedAt ",
			[]query.SortField{{Field: "Status"}, {Field: "UpdatedAt", Descending: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSortFields(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSortFields(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilderStatements(t *testing.T) {
	tests := []struct {
		name     string
		build    func() (string, []any)
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "build without conditions",
			build:   func() (string, []any) { return query.NewBuilder(resultsProjection()).Build() },
			wantSQL: selectResults,
		},
		{
			name:    "count",
			build:   func() (string, []any) { return query.NewBuilder(resultsProjection()).BuildCount() },
			wantSQL: "SELECT COUNT(*) FROM public.validation_results r",
		},
		{
			name: "page with default sort",
			build: func() (string, []any) {
				return query.NewBuilder(resultsProjection(), query.SortField{Field: "UpdatedAt", Descending: true}).
					BuildPage(2, 10)
			},
			wantSQL: selectResults + " ORDER BY r.updated_at DESC LIMIT 10 OFFSET 10",
		},
		{
			name: "single by id",
			build: func() (string, []any) {
				return query.NewBuilder(resultsProjection()).BuildSingle("ID", "abc")
			},
			wantSQL:  selectResults + " WHERE r.id = $1",
			wantArgs: 1,
		},
		{
			name: "single or null",
			build: func() (string, []any) {
				return query.NewBuilder(resultsProjection()).WhereEquals("Status", "Met").BuildSingleOrNull()
			},
			wantSQL:  selectResults + " WHERE r.status = $1 LIMIT 1",
			wantArgs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.build()
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %v, want %d args", args, tt.wantArgs)
			}
		})
	}
}

func TestBuilderConditions(t *testing.T) {
	tests := []struct {
		name     string
		apply    func(b *query.Builder)
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "equals",
			apply:    func(b *query.Builder) { b.WhereEquals("Status", "Met") },
			wantSQL:  selectResults + " WHERE r.status = $1",
			wantArgs: []any{"Met"},
		},
		{
			name:    "equals nil pointer skipped",
			apply:   func(b *query.Builder) { b.WhereEquals("Status", (*string)(nil)) },
			wantSQL: selectResults,
		},
		{
			name:     "contains",
			apply:    func(b *query.Builder) { b.WhereContains("RequirementType", ptr("evidence")) },
			wantSQL:  selectResults + " WHERE r.requirement_type ILIKE $1",
			wantArgs: []any{"%evidence%"},
		},
		{
			name:    "contains empty skipped",
			apply:   func(b *query.Builder) { b.WhereContains("RequirementType", ptr("")) },
			wantSQL: selectResults,
		},
		{
			name:     "in",
			apply:    func(b *query.Builder) { b.WhereIn("Status", []any{"Met", "Not Met"}) },
			wantSQL:  selectResults + " WHERE r.status IN ($1, $2)",
			wantArgs: []any{"Met", "Not Met"},
		},
		{
			name:    "nullable nil",
			apply:   func(b *query.Builder) { b.WhereNullable("Status", nil) },
			wantSQL: selectResults + " WHERE r.status IS NULL",
		},
		{
			name:     "compare",
			apply:    func(b *query.Builder) { b.WhereCompare("UpdatedAt", ">=", "2026-01-01") },
			wantSQL:  selectResults + " WHERE r.updated_at >= $1",
			wantArgs: []any{"2026-01-01"},
		},
		{
			name:    "compare unsupported operator skipped",
			apply:   func(b *query.Builder) { b.WhereCompare("UpdatedAt", "<>", "x") },
			wantSQL: selectResults,
		},
		{
			name:     "search",
			apply:    func(b *query.Builder) { b.WhereSearch(ptr("met"), "Status", "RequirementType") },
			wantSQL:  selectResults + " WHERE (r.status ILIKE $1 OR r.requirement_type ILIKE $2)",
			wantArgs: []any{"%met%", "%met%"},
		},
		{
			name: "multiple conditions number sequentially",
			apply: func(b *query.Builder) {
				b.WhereEquals("SessionID", "s1").
					WhereIn("Status", []any{"Met", "Partially Met"}).
					WhereContains("RequirementType", ptr("skills"))
			},
			wantSQL:  selectResults + " WHERE r.session_id = $1 AND r.status IN ($2, $3) AND r.requirement_type ILIKE $4",
			wantArgs: []any{"s1", "Met", "Partially Met", "%skills%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := query.NewBuilder(resultsProjection())
			tt.apply(b)
			sql, args := b.Build()

			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestBuilderOrderByOverridesDefault(t *testing.T) {
	b := query.NewBuilder(resultsProjection(), query.SortField{Field: "ID"})
	b.OrderByFields([]query.SortField{
		{Field: "RequirementType"},
		{Field: "UpdatedAt", Descending: true},
	})
	sql, _ := b.Build()

	want := selectResults + " ORDER BY r.requirement_type ASC, r.updated_at DESC"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
}
