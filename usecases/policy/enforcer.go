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

// Package policy implements the trie-based policy enforcer oracle of
// spec.md §4.2: authorize(policy, subjects, resourcePath, permission) and
// project(policy, subjects, resource, permission, json).
//
// This is a hand-rolled pointer-walk, not a wrapping of casbin's
// role/verb/resource matcher: casbin's model answers "can subject S
// perform verb V on resource R", flat triples with no notion of grants
// and revokes composing along a JSON-pointer path. spec.md's semantics —
// revoke overrides grant at the same or a deeper path — need a trie
// walk, so that's what this package does. The *packaging* (a stateless,
// cache-loaded Enforcer type; structured audit logging on every
// decision) is carried over from the teacher's
// usecases/auth/authorization/rbac package.
package policy

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ATNoG/eclipse-ditto/entities/models"
)

// trieNode is one segment of a resource-pointer trie. Each node records
// the grants/revokes that apply at or below this depth, per subject.
type trieNode struct {
	children map[string]*trieNode
	rules    []rule
}

type rule struct {
	subjects    map[string]struct{}
	grant       models.Grant
	permissions map[models.Permission]struct{}
}

// Enforcer is the compiled, stateless form of a Policy. Safe for
// concurrent use; construct once per policy revision via Compile and
// cache it (usecases/policy.Cache wraps entities/cache for this).
type Enforcer struct {
	revision int64
	root     *trieNode
	logger   *logrus.Entry
}

// Compile builds an Enforcer from a Policy. logger may be nil.
func Compile(p models.Policy, logger *logrus.Entry) *Enforcer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	root := &trieNode{children: map[string]*trieNode{}}
	for _, entry := range p.Entries {
		for _, target := range entry.Targets {
			node := walkOrCreate(root, splitPointer(target.ResourcePointer))
			node.rules = append(node.rules, rule{
				subjects:    toSet(entry.Subjects),
				grant:       target.Grant,
				permissions: toPermissionSet(target.Permissions),
			})
		}
	}
	return &Enforcer{revision: p.Revision, root: root, logger: logger}
}

// Revision returns the policy revision this Enforcer was compiled from.
func (e *Enforcer) Revision() int64 {
	return e.revision
}

// Authorize walks resourcePath from the root, accumulating the applicable
// decision for the subjects in subjects. A grant applies at its depth and
// below until a deeper rule matches; a revoke overrides every grant at the
// same depth or deeper, so once a revoke matches the result is deny.
func (e *Enforcer) Authorize(subjects []string, resourcePath string, permission models.Permission) bool {
	subjectSet := toSet(subjects)
	decision := false // default deny
	revoked := false

	node := e.root
	segments := splitPointer(resourcePath)

	// applyRules folds every matching rule at one depth into a single
	// decision for that depth, with revoke overriding grant when both
	// match at the same depth; a depth with no matching rule leaves the
	// decision from a shallower depth untouched.
	applyRules := func(n *trieNode) {
		matched := false
		nodeDecision := decision
		for _, r := range n.rules {
			if !subjectIntersects(r.subjects, subjectSet) {
				continue
			}
			if _, ok := r.permissions[permission]; !ok {
				continue
			}
			if !matched {
				nodeDecision = r.grant == models.GrantAllow
				matched = true
				continue
			}
			// a grant never resurrects a revoke already seen at this depth
			if r.grant == models.GrantDeny {
				nodeDecision = false
			}
		}
		if matched && !revoked {
			decision = nodeDecision
			revoked = !nodeDecision
		}
	}
	applyRules(node)
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			break
		}
		node = child
		applyRules(node)
	}

	e.logger.WithFields(logrus.Fields{
		"resource":   resourcePath,
		"permission": permission,
		"subjects":   subjects,
		"decision":   decision,
	}).Debug("policy decision")

	return decision
}

// Project returns the maximal allowed JSON sub-view of doc for subjects
// at permission, by walking doc's pointers and keeping only those
// Authorize allows. doc must be a JSON-like map[string]any tree.
func (e *Enforcer) Project(subjects []string, doc map[string]any, permission models.Permission) map[string]any {
	return e.projectAt(subjects, doc, "", permission)
}

func (e *Enforcer) projectAt(subjects []string, node map[string]any, pointer string, permission models.Permission) map[string]any {
	out := map[string]any{}
	for key, val := range node {
		childPointer := pointer + "/" + key
		if !e.Authorize(subjects, childPointer, permission) {
			continue
		}
		switch v := val.(type) {
		case map[string]any:
			out[key] = e.projectAt(subjects, v, childPointer, permission)
		default:
			out[key] = v
		}
	}
	return out
}

func walkOrCreate(root *trieNode, segments []string) *trieNode {
	node := root
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			child = &trieNode{children: map[string]*trieNode{}}
			node.children[seg] = child
		}
		node = child
	}
	return node
}

func splitPointer(pointer string) []string {
	trimmed := strings.Trim(pointer, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func toPermissionSet(items []models.Permission) map[models.Permission]struct{} {
	set := make(map[models.Permission]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func subjectIntersects(a, b map[string]struct{}) bool {
	for s := range a {
		if _, ok := b[s]; ok {
			return true
		}
	}
	return false
}
