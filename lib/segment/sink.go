// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package segment

import "context"

// Sink receives sealed segments. Implementations must be safe to
// retry: a Ship that returned an error may be called again with the
// same segment.
type Sink interface {
	Ship(ctx context.Context, segment *Segment) error
}
