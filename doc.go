// Package vellum is the Composition Root of Vellum, a transactional
// resource database for content management.
//
// A site is a tree of resources stored as plain metadata files next to
// their data files. Every change happens inside a transaction that ends in
// exactly one git commit, after which the catalog (an inverted index over
// the resources) is updated.
//
// Features:
//
//   - **Transactions**: the change set tracks added, changed and removed
//     resources until Commit or AbortChanges.
//   - **Referential integrity**: deleting a resource still linked from
//     elsewhere is refused unless forced.
//   - **Catalog**: phrase, range, prefix, glob and expression queries over
//     schema-typed fields, persisted in the system directory.
//   - **Git history**: one commit per transaction, with author and reason.
//
// Usage:
//
//	site, err := vellum.Init("./site", vellum.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	err = site.Update(ctx, func(ctx context.Context, s *core.Store) error {
//		_, err := s.MakeResource(ctx, "/about", classes.Page, core.Props{"title": "About"})
//		return err
//	})
package vellum
