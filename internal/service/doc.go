// Package service is quill's single owned service: one instance is built at
// process start with Open and handed to every caller.
//
// The service wires the entry store, the draft store, the single writer,
// the event bus, the searcher and the auto-save scheduler. All mutations go
// through the writer; reads use store snapshots. Each run has its own
// session id (UUIDv7) under which drafts are written.
//
// Lifecycle:
//
//	svc, err := service.Open(ctx, service.Options{Config: cfg})
//	...
//	defer svc.Close(ctx)
//
// Close flushes open documents, drains the writer and removes this session's
// drafts whose content was committed. Drafts left behind by a crash stay
// until they are accepted, discarded or expire.
package service
