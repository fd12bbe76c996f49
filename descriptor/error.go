// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import "errors"

var (
	// ErrMalformedDescriptor is returned when the overall expression does
	// not follow the descriptor grammar, such as an unknown script
	// function, unbalanced parentheses, or a non-numeric multisig
	// threshold.
	ErrMalformedDescriptor = errors.New("malformed descriptor")

	// ErrMalformedKey is returned when a key expression cannot be decoded
	// as a public key, WIF private key, or extended key, when a derivation
	// path element is out of range, when a wildcard appears before the end
	// of a path, or when an uncompressed key is used where a witness
	// context requires a compressed one.
	ErrMalformedKey = errors.New("malformed key expression")

	// ErrInvalidNesting is returned when a script function appears in a
	// context its template does not permit, such as combo below the top
	// level, sh inside another script, or wpkh inside wsh.
	ErrInvalidNesting = errors.New("invalid script nesting")

	// ErrMultisigBounds is returned when a multisig threshold falls
	// outside 1 through the number of keys, when more than 16 keys are
	// given, or when the serialized redeem script of a multisig inside
	// sh would exceed the script element size ceiling.
	ErrMultisigBounds = errors.New("multisig bounds exceeded")

	// ErrRequiresPrivateKey is returned when derivation reaches a hardened
	// path element and only the public form of the extended key is
	// available.
	ErrRequiresPrivateKey = errors.New("hardened derivation requires private key")

	// ErrKeyMaterialMissing is returned when a key expression could not be
	// resolved to concrete key bytes during expansion.
	ErrKeyMaterialMissing = errors.New("key material missing")

	// ErrIndexRequired is returned when a ranged descriptor is expanded
	// without a concrete index.
	ErrIndexRequired = errors.New("index required for ranged descriptor")

	// ErrPrivateKeyUnavailable is returned by ToPrivateString when the
	// supplied provider lacks the private material for one or more key
	// expressions in the tree.
	ErrPrivateKeyUnavailable = errors.New("private key unavailable")
)
