// Copyright 2025 The Where Is Teemo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xmpp

import (
	"bytes"

	"github.com/whereisteemo/teemo"
)

// Rewrite applies the stealth mode to a completed frame. It is a
// total function with no side effects: anything that is not a
// presence stanza, and every frame under ModeOnline, comes back
// byte-identical. A presence stanza under ModeInvisible is replaced
// by a self-closing presence with type="unavailable", its other
// attributes preserved and all children stripped.
func Rewrite(f Frame, mode teemo.Mode) []byte {
	if mode != teemo.ModeInvisible || f.Kind != KindPresence {
		return f.Bytes
	}
	return makeUnavailable(f.Bytes)
}

// makeUnavailable rebuilds the outer presence tag. The input is a
// complete frame from the framer, so the opening tag is well formed.
func makeUnavailable(stanza []byte) []byte {
	end, _, ok := scanTag(stanza, 0)
	if !ok {
		// cannot happen for a framed stanza; forward rather than drop
		return stanza
	}

	// attribute region between "<presence" and the tag's '>'
	attrRegion := stanza[len("<presence"):end]
	attrRegion = bytes.TrimSuffix(attrRegion, []byte(">"))
	attrRegion = bytes.TrimSuffix(attrRegion, []byte("/"))

	var out bytes.Buffer
	out.Grow(end + len(` type="unavailable"/>`))
	out.WriteString("<presence")
	for _, attr := range splitAttrs(attrRegion) {
		if attr.name == "type" {
			continue
		}
		out.WriteByte(' ')
		out.Write(attr.raw)
	}
	out.WriteString(` type="unavailable"/>`)
	return out.Bytes()
}

type attr struct {
	name string
	raw  []byte
}

// splitAttrs tokenizes name="value" pairs, preserving each pair's
// original bytes (quoting included) so untouched attributes survive
// verbatim.
func splitAttrs(region []byte) []attr {
	var attrs []attr
	i := 0
	for i < len(region) {
		c := region[i]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			i++
			continue
		}
		start := i
		nameEnd := i
		for nameEnd < len(region) && region[nameEnd] != '=' && region[nameEnd] != ' ' &&
			region[nameEnd] != '\t' && region[nameEnd] != '\r' && region[nameEnd] != '\n' {
			nameEnd++
		}
		name := string(region[start:nameEnd])
		i = nameEnd
		// skip whitespace around '='
		for i < len(region) && (region[i] == ' ' || region[i] == '\t') {
			i++
		}
		if i < len(region) && region[i] == '=' {
			i++
			for i < len(region) && (region[i] == ' ' || region[i] == '\t') {
				i++
			}
			if i < len(region) && (region[i] == '"' || region[i] == '\'') {
				quote := region[i]
				j := bytes.IndexByte(region[i+1:], quote)
				if j < 0 {
					i = len(region)
				} else {
					i += j + 2
				}
			} else {
				for i < len(region) && region[i] != ' ' && region[i] != '\t' {
					i++
				}
			}
		}
		attrs = append(attrs, attr{name: name, raw: region[start:i]})
	}
	return attrs
}
