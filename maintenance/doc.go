// Package maintenance checks and repairs the structure of a text index.
//
// The Checker walks every index record in batches and verifies that the
// record's compound key resolves back to it and that each of its terms has a
// term index entry. Dangling term index entries are counted last. When
// repairing, stray records are deleted, missing entries are rewritten and
// dangling entries are pruned.
//
// Repairs are retried with exponential backoff so that they can run next to
// live indexing traffic.
package maintenance
