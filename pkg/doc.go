// Package pkg provides the core libraries for building CBZ comic archives.
//
// # Overview
//
// cbzkit turns pages from three kinds of source into a zip archive of
// zero-padded, naturally ordered images:
//
//  1. pack: loose images, directories, globs or a single existing archive
//  2. merge: several archives concatenated in natural path order
//  3. convert: pdf, epub, mobi and azw3 books decoded to their images
//
// # Architecture
//
//	inputs (files, archives, books)
//	         ↓
//	    [source] / [merge] / [decode]   discovery, natural ordering
//	         ↓
//	    [transform]                      autosplit, contrast, brightness, blur
//	         ↓
//	    [archive]                        numbered entries, ComicBookInfo comment
//
// [pipeline] drives the whole flow: it transforms pages on a bounded worker
// pool and writes them back in source order, so the archive is identical
// for any worker count.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	res, err := runner.Pack(ctx, []string{"scans/*.png"}, pipeline.Options{
//	    Name:      "Volume 1",
//	    Transform: transform.Spec{Autosplit: true},
//	})
//
// # Main Packages
//
// [page] - The page record, format sniffing and lazy loading.
//
// [natsort] - Natural ordering of names ("p2" before "p10").
//
// [source] - Page discovery from files and archives, and the [source.Decoder]
// interface foreign formats implement.
//
// [decode] - The registry of foreign formats with one subpackage each.
//
// [transform] - Per-page image adjustments.
//
// [archive] - Streaming zip writer and reader with metadata support.
//
// [merge] - Archive discovery and concatenation.
//
// [pipeline] - Orchestration, ordered parallel execution and decode caching.
//
// [cache] - File, redis and null caches for decoded pages.
//
// [observability] - Hooks for metrics on discovery, transforms, writes and
// cache use.
//
// [errors] - Error codes and the typed errors every package returns.
//
// [buildinfo] - Version information set at build time.
package pkg
