package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/vellum/pkg/catalog"
	"github.com/aretw0/vellum/pkg/core"
)

var (
	searchFormat  string
	searchWithin  string
	searchText    string
	searchGlob    string
	searchWhere   string
	searchSort    string
	searchReverse bool
	searchLimit   int
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the catalog",
	Long: `Query the catalog. Filters combine with AND; without any filter every
resource matches. --where takes an expression over the stored fields.`,
	Example: `  vellum search --format page --within /docs --sort name
  vellum search --where 'size > 1024 && format == "file"'`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		q, err := searchQuery()
		if err != nil {
			fatal("Invalid query", err)
		}
		site := openSite()

		var (
			total   int
			results []catalog.Result
		)
		err = site.View(cmd.Context(), func(ctx context.Context, store *core.Store) error {
			rs, err := store.Catalog().Search(q)
			if err != nil {
				return err
			}
			total = rs.Len()
			results, err = rs.Documents(catalog.Page{SortBy: searchSort, Reverse: searchReverse, Size: searchLimit})
			return err
		})
		if err != nil {
			fatal("Search failed", err)
		}

		if searchJSON {
			out := make([]map[string]any, 0, len(results))
			for _, r := range results {
				out = append(out, r.Fields())
			}
			printJSON(out)
			return
		}
		for _, r := range results {
			fmt.Println(color.CyanString("%-40s", r.Key()), r.String(core.PropTitle, ""))
		}
		fmt.Println(color.New(color.Faint).Sprintf("%d of %d for %s", len(results), total, q))
	},
}

func searchQuery() (catalog.Query, error) {
	var qs []catalog.Query
	if searchFormat != "" {
		qs = append(qs, catalog.Phrase("format", searchFormat))
	}
	if searchWithin != "" {
		qs = append(qs, catalog.Phrase("paths", core.CleanPath(searchWithin)))
	}
	if searchText != "" {
		qs = append(qs, catalog.Or(catalog.Phrase(core.PropTitle, searchText), catalog.Phrase("text", searchText)))
	}
	if searchGlob != "" {
		qs = append(qs, catalog.Glob("name", searchGlob))
	}
	if searchWhere != "" {
		where, err := catalog.Where(searchWhere)
		if err != nil {
			return nil, err
		}
		qs = append(qs, where)
	}
	switch len(qs) {
	case 0:
		return catalog.All(), nil
	case 1:
		return qs[0], nil
	}
	return catalog.And(qs...), nil
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchFormat, "format", "", "Class of the resources")
	f.StringVar(&searchWithin, "within", "", "Folder containing the resources")
	f.StringVar(&searchText, "text", "", "Words of the title or the content")
	f.StringVar(&searchGlob, "glob", "", "Pattern of the resource names")
	f.StringVar(&searchWhere, "where", "", "Expression over stored fields")
	f.StringVar(&searchSort, "sort", "", "Field to sort by")
	f.BoolVar(&searchReverse, "reverse", false, "Reverse the sort order")
	f.IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results (0 for all)")
	f.BoolVar(&searchJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(searchCmd)
}
