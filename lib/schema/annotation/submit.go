// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package annotation

import (
	"errors"
	"time"
)

// SubmitRequest is the wire format of the relay's "submit" action.
// Source is given once for the whole request; the relay calls
// StampSource before validating and encoding the annotations.
type SubmitRequest struct {
	Action      string       `cbor:"action"`
	Source      string       `cbor:"source"`
	Annotations []Annotation `cbor:"annotations"`
}

// StampSource copies the envelope source onto every annotation and
// fills a zero Timestamp with now.
func (r *SubmitRequest) StampSource(now time.Time) {
	for i := range r.Annotations {
		r.Annotations[i].Source = r.Source
		if r.Annotations[i].Timestamp.IsZero() {
			r.Annotations[i].Timestamp = now
		}
	}
}

// Validate checks the envelope. Individual annotations are validated
// separately so that one bad record can be reported by index.
func (r *SubmitRequest) Validate() error {
	if r.Source == "" {
		return errors.New("submit request must include a source")
	}
	if len(r.Annotations) == 0 {
		return errors.New("submit request must contain at least one annotation")
	}
	return nil
}

// SubmitResponse reports how many annotations of a submit request were
// committed. Annotations are committed in order; Accepted is the
// length of the committed prefix.
type SubmitResponse struct {
	Accepted int `cbor:"accepted"`
}

// StatusResponse is the wire format of the relay's "status" action.
type StatusResponse struct {
	UptimeSeconds       float64 `cbor:"uptime_seconds"`
	RelayID             string  `cbor:"relay_id"`
	KernelBytes         int     `cbor:"kernel_bytes"`
	KernelMaxBytes      uint64  `cbor:"kernel_max_bytes"`
	QueueEntries        int     `cbor:"queue_entries"`
	QueueBytes          int     `cbor:"queue_bytes"`
	AnnotationsAccepted uint64  `cbor:"annotations_accepted"`
	AnnotationsRejected uint64  `cbor:"annotations_rejected"`
	SegmentsSealed      uint64  `cbor:"segments_sealed"`
	SegmentsShipped     uint64  `cbor:"segments_shipped"`
	SegmentsDropped     uint64  `cbor:"segments_dropped"`
	Sequence            uint64  `cbor:"sequence"`
}
