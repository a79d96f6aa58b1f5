//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package models

import "go.mongodb.org/mongo-driver/bson"

// WriteModelKind tags the variant held by a WriteModel.
type WriteModelKind int

const (
	// KindDelete removes the twin's search-index document.
	KindDelete WriteModelKind = iota
	// KindPut fully replaces the twin's search-index document.
	KindPut
	// KindPatch conditionally applies a partial update.
	KindPatch
)

// WriteModel is the tagged union {Delete, Put, Patch} produced by the
// enforcement flow and consumed by the differ and bulk writer.
type WriteModel struct {
	Kind     WriteModelKind
	Metadata Metadata

	// Put
	Document bson.M

	// Patch
	Update        bson.M
	FilterRevision int64
}

// NewDelete builds a Delete write model.
func NewDelete(md Metadata) WriteModel {
	return WriteModel{Kind: KindDelete, Metadata: md}
}

// NewPut builds a Put write model.
func NewPut(md Metadata, doc bson.M) WriteModel {
	return WriteModel{Kind: KindPut, Metadata: md, Document: doc}
}

// NewPatch builds a Patch write model, conditioned on filterRevision.
func NewPatch(md Metadata, update bson.M, filterRevision int64) WriteModel {
	return WriteModel{Kind: KindPatch, Metadata: md, Update: update, FilterRevision: filterRevision}
}

// Revision returns the revision this write model was computed at, used
// as the optimistic-concurrency filter for the next patch.
func (w WriteModel) Revision() int64 {
	return w.Metadata.ThingRevision
}

// IsDelete reports whether w is a Delete variant.
func (w WriteModel) IsDelete() bool {
	return w.Kind == KindDelete
}
