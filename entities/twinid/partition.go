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

package twinid

import "github.com/spaolacci/murmur3"

// Partition computes |hash(id)| mod partitions, the ordering unit shared
// by the enforcement flow and the bulk writer (spec.md §4.4, §4.6,
// glossary "Partition"). partitions <= 0 always returns 0.
func Partition(id ID, partitions int) int {
	if partitions <= 0 {
		return 0
	}
	p := int(murmur3.Sum32([]byte(id.String()))) % partitions
	if p < 0 {
		p += partitions
	}
	return p
}
