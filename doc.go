// Package packscan is a pack-oriented columnar scan reader.
//
// It turns an ordered list of (segment, pack) work units into decoded,
// type-specific column vectors for vectorized execution, and resolves
// logical query columns against the physical column catalog of every
// segment, including the byte cost estimates a planner compares.
//
// # Packages
//
//   - pkg/scan: the segment cache, the pack decode engine, the PackReader
//     work iterator and parallel fragments.
//   - pkg/schema: table prefix stripping and column resolution, within one
//     catalog and across segment catalogs.
//   - pkg/cost: per-column and per-row byte cost estimates.
//   - pkg/segment: data types, catalogs, work units and the segment, column
//     and pack interfaces, with an in-memory implementation.
//   - pkg/segment/packfile: the on-disk pack file format.
//   - pkg/blobstore: local (memory-mapped) and S3 blob stores.
//   - pkg/vector: reusable output vectors with Arrow export.
//   - pkg/manifest: JSON/YAML scan manifests and work unit planning.
//
// # Quick Start
//
// Read two columns of every pack of every segment under ./data:
//
//	store := blobstore.NewLocalStore("./data")
//	opener := packfile.NewOpener(store, nil)
//
//	ids, _ := manifest.DiscoverSegments(ctx, store, "")
//	units, _ := manifest.Plan(ctx, opener, ids)
//
//	r, err := scan.NewPackReader(opener, "orders", tableSchema,
//	    []scan.ProjectedColumn{{Path: "orders.id"}, {Path: "orders.sku"}}, units)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    n, err := r.Next(ctx)
//	    if err != nil || n == 0 {
//	        return err
//	    }
//	    ids, _ := r.Vector("id")
//	    process(ids.(*vector.Int64Vector).Values())
//	}
//
// The packscan command wraps the same flow: generate, inspect, plan, cost
// and scan.
package packscan
