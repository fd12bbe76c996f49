// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/txscript"
)

// maxMultisigKeys is the most keys a multi expression accepts.
const maxMultisigKeys = 16

// scriptContext describes where a script expression appears while parsing.
// The nesting legality rules are a function of the expression's own kind and
// this context.
type scriptContext int

const (
	// ctxTop is a top-level expression.
	ctxTop scriptContext = iota

	// ctxP2SH is an expression inside sh().
	ctxP2SH

	// ctxP2WSH is an expression inside wsh().
	ctxP2WSH
)

// nodeKind identifies the script template a descriptor node expands to.
type nodeKind int

const (
	nodeCombo nodeKind = iota
	nodePk
	nodePkh
	nodeWpkh
	nodeSh
	nodeWsh
	nodeMulti
)

// String returns the script function name of the kind.
func (k nodeKind) String() string {
	switch k {
	case nodeCombo:
		return "combo"
	case nodePk:
		return "pk"
	case nodePkh:
		return "pkh"
	case nodeWpkh:
		return "wpkh"
	case nodeSh:
		return "sh"
	case nodeWsh:
		return "wsh"
	case nodeMulti:
		return "multi"
	}
	return "unknown"
}

// node is one vertex of a parsed descriptor tree.  key is set for the
// single-key kinds, keys and threshold for multi, and child for the sh and
// wsh wrappers.
type node struct {
	kind      nodeKind
	key       *keyExpr
	threshold int
	keys      []*keyExpr
	child     *node
}

// Descriptor is a parsed output script descriptor.  A Descriptor is
// immutable once parsed and safe for concurrent use.
type Descriptor struct {
	root *node
}

// Parse compiles a descriptor string into a tree.  Private key material
// encountered in the text, whether WIF-encoded keys or extended private
// keys, is recorded into the returned provider; a descriptor carrying only
// public material yields an empty one.  Parsing is atomic: on error no tree
// and no provider are returned.
func Parse(desc string) (*Descriptor, *SigningProvider, error) {
	prov := NewSigningProvider()
	root, err := parseScript(desc, ctxTop, prov)
	if err != nil {
		return nil, nil, err
	}
	log.Tracef("parsed descriptor %s", desc)
	return &Descriptor{root: root}, prov, nil
}

// parseScript parses one script expression in the given context, recursing
// into sh and wsh arguments.  Nesting legality is enforced as each
// expression is reduced, so an illegal tree is rejected before any deeper
// work happens.
func parseScript(expr string, ctx scriptContext, prov *SigningProvider) (*node, error) {
	name, inner, err := splitExpr(expr)
	if err != nil {
		return nil, err
	}

	switch name {
	case "combo":
		if ctx != ctxTop {
			return nil, fmt.Errorf("%w: combo is only allowed at "+
				"the top level", ErrInvalidNesting)
		}
		key, err := parseKeyExpr(inner, false, prov)
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeCombo, key: key}, nil

	case "pk", "pkh":
		key, err := parseKeyExpr(inner, ctx == ctxP2WSH, prov)
		if err != nil {
			return nil, err
		}
		kind := nodePk
		if name == "pkh" {
			kind = nodePkh
		}
		return &node{kind: kind, key: key}, nil

	case "wpkh":
		if ctx == ctxP2WSH {
			return nil, fmt.Errorf("%w: wpkh cannot be nested "+
				"inside wsh", ErrInvalidNesting)
		}
		key, err := parseKeyExpr(inner, true, prov)
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeWpkh, key: key}, nil

	case "sh":
		if ctx != ctxTop {
			return nil, fmt.Errorf("%w: sh is only allowed at the "+
				"top level", ErrInvalidNesting)
		}
		child, err := parseScript(inner, ctxP2SH, prov)
		if err != nil {
			return nil, wrapperChildErr(name, inner, err)
		}
		return &node{kind: nodeSh, child: child}, nil

	case "wsh":
		if ctx == ctxP2WSH {
			return nil, fmt.Errorf("%w: wsh cannot be nested "+
				"inside wsh", ErrInvalidNesting)
		}
		child, err := parseScript(inner, ctxP2WSH, prov)
		if err != nil {
			return nil, wrapperChildErr(name, inner, err)
		}
		return &node{kind: nodeWsh, child: child}, nil

	case "multi":
		return parseMulti(inner, ctx, prov)
	}

	return nil, fmt.Errorf("%w: unknown script function %q",
		ErrMalformedDescriptor, name)
}

// parseMulti parses the argument list of a multi expression and checks the
// threshold, key count, and, inside sh, the serialized redeem script size
// against the script element ceiling.
func parseMulti(inner string, ctx scriptContext, prov *SigningProvider) (*node, error) {
	args := splitArgs(inner)
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: multi requires a threshold and at "+
			"least one key", ErrMalformedDescriptor)
	}
	if !isDigits(args[0]) {
		return nil, fmt.Errorf("%w: multi threshold %q is not a "+
			"number", ErrMalformedDescriptor, args[0])
	}
	threshold, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: multi threshold %q is not a "+
			"number", ErrMalformedDescriptor, args[0])
	}

	keys := make([]*keyExpr, 0, len(args)-1)
	for _, arg := range args[1:] {
		key, err := parseKeyExpr(arg, ctx == ctxP2WSH, prov)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if threshold < 1 || threshold > len(keys) {
		return nil, fmt.Errorf("%w: threshold %d with %d keys",
			ErrMultisigBounds, threshold, len(keys))
	}
	if len(keys) > maxMultisigKeys {
		return nil, fmt.Errorf("%w: %d keys exceeds the maximum of %d",
			ErrMultisigBounds, len(keys), maxMultisigKeys)
	}

	// A multisig redeem script inside sh must itself fit in a script
	// element when the wrapper is satisfied.  OP_k, OP_n and
	// OP_CHECKMULTISIG take a byte each and every key costs a push byte
	// plus its serialization.
	if ctx == ctxP2SH {
		size := 3
		for _, key := range keys {
			size += 1 + key.serializedLen()
		}
		if size > txscript.MaxScriptElementSize {
			return nil, fmt.Errorf("%w: redeem script size %d "+
				"exceeds %d bytes", ErrMultisigBounds, size,
				txscript.MaxScriptElementSize)
		}
	}

	return &node{kind: nodeMulti, threshold: threshold, keys: keys}, nil
}

// wrapperChildErr rewrites the failure of an sh or wsh argument that is a
// valid key expression rather than a script: the wrapper needs a script, so
// that is a nesting mistake rather than a syntax one.
func wrapperChildErr(name, inner string, err error) error {
	if !strings.ContainsRune(inner, '(') {
		if _, keyErr := parseKeyExpr(inner, false, NewSigningProvider()); keyErr == nil {
			return fmt.Errorf("%w: %s requires a script, not a key",
				ErrInvalidNesting, name)
		}
	}
	return err
}

// splitExpr splits "name(inner)" into the function name and the text inside
// the outermost parenthesis pair, verifying the parentheses balance.
func splitExpr(expr string) (name, inner string, err error) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 || expr[len(expr)-1] != ')' {
		return "", "", fmt.Errorf("%w: %q is not a script expression",
			ErrMalformedDescriptor, expr)
	}
	name = expr[:open]
	for i := 0; i < len(name); i++ {
		if name[i] < 'a' || name[i] > 'z' {
			return "", "", fmt.Errorf("%w: invalid script function "+
				"name %q", ErrMalformedDescriptor, name)
		}
	}
	inner = expr[open+1 : len(expr)-1]
	depth := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", "", fmt.Errorf("%w: unbalanced "+
					"parentheses", ErrMalformedDescriptor)
			}
		}
	}
	if depth != 0 {
		return "", "", fmt.Errorf("%w: unbalanced parentheses",
			ErrMalformedDescriptor)
	}
	return name, inner, nil
}

// splitArgs splits a comma-separated argument list at depth zero.
func splitArgs(inner string) []string {
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	return append(args, inner[start:])
}

// isDigits reports whether s is one or more ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsRange reports whether any key expression in the tree carries a wildcard
// path element.  Expanding a ranged descriptor requires a concrete index;
// every wildcard in one tree is driven by the same index.
func (d *Descriptor) IsRange() bool {
	return d.root.isRange()
}

func (n *node) isRange() bool {
	switch n.kind {
	case nodeSh, nodeWsh:
		return n.child.isRange()
	case nodeMulti:
		for _, key := range n.keys {
			if key.isRange() {
				return true
			}
		}
		return false
	}
	return n.key.isRange()
}

// String returns the canonical public text of the descriptor.  It is a pure
// function of the tree: reparsing the result yields a tree that renders
// identically, and private material is never consulted.
func (d *Descriptor) String() string {
	s, _ := d.root.render(func(k *keyExpr) (string, error) {
		return k.String(), nil
	})
	return s
}

// ToPrivateString returns the private text of the descriptor, with every key
// expression rendered in its private form using material from prov.  It
// works identically for trees parsed from public or private text; all that
// matters is that prov can supply the private bytes.  ErrPrivateKeyUnavailable
// is returned when it cannot.
func (d *Descriptor) ToPrivateString(prov *SigningProvider) (string, error) {
	return d.root.render(func(k *keyExpr) (string, error) {
		return k.privString(prov)
	})
}

// render walks the tree rebuilding its text with key expressions rendered by
// keyStr.
func (n *node) render(keyStr func(*keyExpr) (string, error)) (string, error) {
	switch n.kind {
	case nodeSh, nodeWsh:
		inner, err := n.child.render(keyStr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", n.kind, inner), nil

	case nodeMulti:
		parts := make([]string, 0, len(n.keys)+1)
		parts = append(parts, strconv.Itoa(n.threshold))
		for _, key := range n.keys {
			s, err := keyStr(key)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("%s(%s)", n.kind, strings.Join(parts, ",")), nil
	}

	s, err := keyStr(n.key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", n.kind, s), nil
}
