// Package sequencer lists a source directory once and yields its entries in a
// fixed order.
//
// Ordering: byte-wise lexicographic by entry name (sort.Strings), established
// when the directory is listed. Entries created after listing are not seen.
//
// Filter policy:
//   - subdirectories are always skipped
//   - an empty Policy.Pattern keeps every other entry, whatever its extension;
//     a file that is not in the decompressor's format then fails loudly at load time
//   - a non-empty Policy.Pattern (filepath.Match syntax, e.g. "*.gz") keeps only
//     matching names
package sequencer
