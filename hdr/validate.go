/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ValidFieldName reports whether name is a legal HTTP header field name
// (RFC 7230 §3.2.6). Grounded on golang.org/x/net/http/httpguts, the
// successor of the golang.org/x/net/lex/httplex package the teacher's
// original vendored copy (src/http) imported for the same purpose.
func ValidFieldName(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// ValidFieldValue reports whether value is a legal HTTP header field value.
func ValidFieldValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}

// ConnectionHasToken reports whether any value of the Connection header
// contains token (case-insensitively), per RFC 7230 §6.1's comma-separated
// token list.
func (h *Header) ConnectionHasToken(token string) bool {
	return httpguts.HeaderValuesContainsToken(h.Values("connection"), token)
}

// ConnectionTokens returns the lowercase, trimmed comma-separated tokens of
// the Connection header.
func (h *Header) ConnectionTokens() []string {
	var tokens []string
	for _, v := range h.Values("connection") {
		for _, t := range strings.Split(v, ",") {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	return tokens
}
