// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package unify merges validated records from many papers into one
// deduplicated dataset and writes it out as a document.
package unify

import (
	"github.com/pdiddy/propextract/pkg/types"
)

// Dataset is an ordered collection of canonical records keyed by
// (source_identifier, property_type, material). A record whose key is
// already present replaces the earlier one in place, so order is the order
// in which keys first appeared. Dataset is not safe for concurrent use.
type Dataset struct {
	records []types.MechanicalPropertyRecord
	index   map[types.RecordKey]int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{index: make(map[types.RecordKey]int)}
}

// Add appends recs in order, overwriting records with a matching key. It
// reports how many keys were new and how many replaced an earlier record.
func (d *Dataset) Add(recs ...types.MechanicalPropertyRecord) (added, replaced int) {
	for _, r := range recs {
		k := r.Key()
		if i, ok := d.index[k]; ok {
			d.records[i] = r
			replaced++
			continue
		}
		d.index[k] = len(d.records)
		d.records = append(d.records, r)
		added++
	}
	return added, replaced
}

// Len returns the number of distinct keys.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns a copy of the records in dataset order.
func (d *Dataset) Records() []types.MechanicalPropertyRecord {
	out := make([]types.MechanicalPropertyRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Merge unifies batches in processing order.
func Merge(batches ...[]types.MechanicalPropertyRecord) *Dataset {
	d := NewDataset()
	for _, b := range batches {
		d.Add(b...)
	}
	return d
}
