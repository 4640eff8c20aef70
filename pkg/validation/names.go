// Copyright (C) 2025 Umbral Works (dev@umbralworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for
// security-critical operations.
//
// This package contains validators for user-provided identifiers that
// end up in storage keys and log lines. Using these validators keeps
// key encodings unambiguous and prevents control characters from
// reaching logs.
package validation

import (
	"fmt"
	"regexp"
)

// namePattern matches valid trait category and variant names.
// Allows: letters, digits, spaces, and the punctuation that appears in
// layer art filenames (dots, hyphens, underscores, apostrophes).
// Max length: 64 characters.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._'\-]{0,63}$`)

// addressPattern matches valid account addresses: lowercase
// alphanumeric with hyphens, 3-90 characters, the shape of bech32 and
// uuid style identifiers.
var addressPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{2,89}$`)

// ValidateName validates a trait category or variant name.
//
// Names are embedded in storage keys with a ':' separator and echoed
// in log lines, so they must start alphanumeric and stay within the
// printable subset above.
//
// Example:
//
//	if err := validation.ValidateName(category); err != nil {
//	    return fmt.Errorf("invalid category: %w", err)
//	}
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name: %q (must be 1-64 chars, alphanumeric with spaces, dots, hyphens, underscores, or apostrophes)", name)
	}
	return nil
}

// ValidateNames validates multiple names.
// Returns an error listing all invalid names if any fail validation.
func ValidateNames(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			invalid = append(invalid, n)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid names: %v", invalid)
	}
	return nil
}

// ValidateAddress validates an account address.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !addressPattern.MatchString(addr) {
		return fmt.Errorf("invalid address format: %q (must be 3-90 lowercase alphanumeric chars or hyphens)", addr)
	}
	return nil
}

// ValidateAddresses validates multiple addresses.
func ValidateAddresses(addrs []string) error {
	var invalid []string
	for _, a := range addrs {
		if err := ValidateAddress(a); err != nil {
			invalid = append(invalid, a)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid addresses: %v", invalid)
	}
	return nil
}
