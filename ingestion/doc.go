// Package ingestion keeps the text index in step with the entities it covers.
//
// The Indexer turns add and remove requests into index updates: content is
// analyzed into terms and stored under its (owner, type, field) key, or the
// key's record is removed. Requests may be applied synchronously or handed to
// a worker pool with Submit. Errors during async processing are logged and
// counted but never fail other requests.
//
// Documents describe whole entities. Each kind knows which of its fields are
// indexed, so IndexDocument and RemoveDocument need no per-type registration.
package ingestion
