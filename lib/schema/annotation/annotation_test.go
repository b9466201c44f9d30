// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package annotation

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func validAnnotation() Annotation {
	return Annotation{
		Timestamp:  time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC),
		Source:     "camera/front",
		Kind:       "frame.dropped",
		Attributes: map[string]string{"reason": "late"},
		Body:       []byte{0x01, 0x02},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Annotation)
		wantErr string
	}{
		{name: "valid", mutate: func(*Annotation) {}},
		{name: "missing source", mutate: func(a *Annotation) { a.Source = "" }, wantErr: "source is required"},
		{name: "missing kind", mutate: func(a *Annotation) { a.Kind = "" }, wantErr: "kind is required"},
		{name: "uppercase kind", mutate: func(a *Annotation) { a.Kind = "Frame" }, wantErr: "invalid character"},
		{name: "kind with space", mutate: func(a *Annotation) { a.Kind = "frame dropped" }, wantErr: "invalid character"},
		{name: "long kind", mutate: func(a *Annotation) { a.Kind = strings.Repeat("k", MaxKindLength+1) }, wantErr: "limit is"},
		{
			name: "too many attributes",
			mutate: func(a *Annotation) {
				a.Attributes = make(map[string]string)
				for i := 0; i <= MaxAttributes; i++ {
					a.Attributes[fmt.Sprint(i)] = "v"
				}
			},
			wantErr: "attributes",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := validAnnotation()
			test.mutate(&a)
			err := a.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	original := validAnnotation()

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.Source != original.Source || decoded.Kind != original.Kind {
		t.Errorf("identity = %q/%q, want %q/%q", decoded.Source, decoded.Kind, original.Source, original.Kind)
	}
	if decoded.Attributes["reason"] != "late" {
		t.Errorf("Attributes = %v", decoded.Attributes)
	}
	if !bytes.Equal(decoded.Body, original.Body) {
		t.Errorf("Body = %x, want %x", decoded.Body, original.Body)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := validAnnotation()
	a.Attributes = map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}

	first, err := a.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := a.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding changed between calls")
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xFF}); err == nil {
		t.Fatal("Decode accepted invalid CBOR")
	}
}

func TestStampSource(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	request := SubmitRequest{
		Source: "lidar",
		Annotations: []Annotation{
			{Kind: "a", Source: "spoofed"},
			{Kind: "b", Timestamp: earlier},
		},
	}

	request.StampSource(now)

	for i, a := range request.Annotations {
		if a.Source != "lidar" {
			t.Errorf("annotation %d source = %q, want lidar", i, a.Source)
		}
	}
	if !request.Annotations[0].Timestamp.Equal(now) {
		t.Errorf("zero timestamp not filled: %v", request.Annotations[0].Timestamp)
	}
	if !request.Annotations[1].Timestamp.Equal(earlier) {
		t.Errorf("producer timestamp overwritten: %v", request.Annotations[1].Timestamp)
	}
}

func TestSubmitRequestValidate(t *testing.T) {
	if err := (&SubmitRequest{Annotations: []Annotation{{}}}).Validate(); err == nil {
		t.Error("missing source accepted")
	}
	if err := (&SubmitRequest{Source: "x"}).Validate(); err == nil {
		t.Error("empty annotation list accepted")
	}
	if err := (&SubmitRequest{Source: "x", Annotations: []Annotation{{}}}).Validate(); err != nil {
		t.Errorf("valid envelope rejected: %v", err)
	}
}
