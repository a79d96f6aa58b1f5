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

// Package twinid defines the namespaced identifiers used throughout the
// twin update pipeline: TwinId and PolicyId share the same lexical shape.
package twinid

import (
	"fmt"
	"strings"
)

const maxNameLength = 256

// ID is a namespaced identifier of the form "<namespace>:<name>".
type ID struct {
	Namespace string
	Name      string
}

// Parse validates and splits raw into a namespaced ID.
//
// Namespace: starts with an ASCII letter, dot-separated segments each
// starting with a letter, digits and underscore allowed thereafter.
// Name: nonempty, no slashes, no control characters, may contain
// percent-encoded bytes, length <= 256.
func Parse(raw string) (ID, error) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return ID{}, fmt.Errorf("twinid: missing ':' separator in %q", raw)
	}

	ns, name := raw[:idx], raw[idx+1:]
	if err := validateNamespace(ns); err != nil {
		return ID{}, fmt.Errorf("twinid: invalid namespace in %q: %w", raw, err)
	}
	if err := validateName(name); err != nil {
		return ID{}, fmt.Errorf("twinid: invalid name in %q: %w", raw, err)
	}

	return ID{Namespace: ns, Name: name}, nil
}

func validateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	for _, segment := range strings.Split(ns, ".") {
		if segment == "" {
			return fmt.Errorf("empty namespace segment")
		}
		if !isASCIILetter(segment[0]) {
			return fmt.Errorf("segment %q must start with an ASCII letter", segment)
		}
		for i := 1; i < len(segment); i++ {
			c := segment[i]
			if !isASCIILetter(c) && !isDigit(c) && c != '_' {
				return fmt.Errorf("segment %q contains invalid character %q", segment, c)
			}
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name exceeds %d bytes", maxNameLength)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' {
			return fmt.Errorf("name must not contain '/'")
		}
		if c < 0x20 || c == 0x7f {
			return fmt.Errorf("name must not contain control characters")
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// String renders the canonical "<namespace>:<name>" form.
func (id ID) String() string {
	return id.Namespace + ":" + id.Name
}

// IsZero reports whether id is the zero value (used as "absent").
func (id ID) IsZero() bool {
	return id.Namespace == "" && id.Name == ""
}
