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

// Permission is a named capability checked against a resource pointer,
// e.g. "READ" or "WRITE".
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
)

// Grant is either Allow or Deny for a set of permissions at a resource
// pointer.
type Grant string

const (
	GrantAllow Grant = "ALLOW"
	GrantDeny  Grant = "DENY"
)

// PolicyEntry binds a subject set to grants/revokes over a set of
// (resourceType, resourcePointer) targets.
type PolicyEntry struct {
	Subjects []string
	Targets  []PolicyTarget
}

// PolicyTarget names one resource pointer and the permissions granted or
// revoked there.
type PolicyTarget struct {
	ResourceType    string
	ResourcePointer string
	Grant           Grant
	Permissions     []Permission
}

// Policy is a set of entries; the compiled Enforcer (usecases/policy)
// evaluates them.
type Policy struct {
	Revision int64
	Entries  []PolicyEntry
}
