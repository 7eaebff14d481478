// Package enumerate walks a scan target's content tree: containers of
// a web, items of a library or folder, and the role assignments of
// anything that breaks permission inheritance.
//
// Item listing is paged exclusively by continuation id ("strictly
// greater than the highest id seen"), never by offset. The listing
// backend silently repeats pages under offset paging once item counts
// grow past a few thousand rows, so the pager treats continuation as
// the only correct strategy rather than an optimization.
//
// Role-assignment fetches for a batch of broken nodes are side-effect
// free and may run concurrently; resolution stays serial because it
// writes the shared caches.
package enumerate
