package spatial

import "errors"

// ErrUnsupported is returned by OrganismsWithinRange: the chunked index's
// 1-ring invariant makes an arbitrary-range query unbounded work; use an
// R-tree index for that query instead.
var ErrUnsupported = errors.New("spatial: organismsWithinRange is not supported by ChunkedIndex")
