// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SigningProvider accumulates the key and script material discovered while
// parsing and expanding descriptors.  Private keys are only ever recorded
// when a descriptor carrying private material is parsed, or when expansion
// derives a child of an available extended private key.  Scripts are
// recorded whenever expansion embeds a sub-script inside sh or wsh.
//
// Every map is keyed by a hash of the stored value, so two providers can
// never hold conflicting entries under the same key and merging is lossless.
// A provider is an append-only value with no shared backing store; the
// engine never mutates a caller-owned provider in place.
type SigningProvider struct {
	keys           map[[20]byte]*btcutil.WIF
	pubKeys        map[[20]byte]*btcec.PublicKey
	scripts        map[[20]byte][]byte
	witnessScripts map[chainhash.Hash][]byte
}

// NewSigningProvider returns an empty provider.
func NewSigningProvider() *SigningProvider {
	return &SigningProvider{
		keys:           make(map[[20]byte]*btcutil.WIF),
		pubKeys:        make(map[[20]byte]*btcec.PublicKey),
		scripts:        make(map[[20]byte][]byte),
		witnessScripts: make(map[chainhash.Hash][]byte),
	}
}

// toHash160 copies a HASH160 slice into a map key.
func toHash160(b []byte) (id [20]byte) {
	copy(id[:], b)
	return id
}

// AddKey records a private key.  The key is indexed by the HASH160 of its
// public key serialized per the WIF compression flag, which is the same
// identity the corresponding output scripts commit to.
func (s *SigningProvider) AddKey(wif *btcutil.WIF) {
	id := toHash160(btcutil.Hash160(wif.SerializePubKey()))
	s.keys[id] = wif
	s.pubKeys[id] = wif.PrivKey.PubKey()
}

// Key returns the private key recorded for the given public key hash.
func (s *SigningProvider) Key(pubKeyHash []byte) (*btcutil.WIF, bool) {
	wif, ok := s.keys[toHash160(pubKeyHash)]
	return wif, ok
}

// NumKeys returns the number of private keys held by the provider.
func (s *SigningProvider) NumKeys() int {
	return len(s.keys)
}

// addPubKey records a resolved public key under the HASH160 of the given
// serialization.
func (s *SigningProvider) addPubKey(ser []byte, pub *btcec.PublicKey) {
	s.pubKeys[toHash160(btcutil.Hash160(ser))] = pub
}

// PubKey returns the public key recorded for the given public key hash.
func (s *SigningProvider) PubKey(pubKeyHash []byte) (*btcec.PublicKey, bool) {
	pub, ok := s.pubKeys[toHash160(pubKeyHash)]
	return pub, ok
}

// AddScript records an embedded script.  The script is indexed under both
// its HASH160, as committed to by sh, and its single SHA256, as committed to
// by wsh.
func (s *SigningProvider) AddScript(script []byte) {
	var wsh chainhash.Hash
	copy(wsh[:], chainhash.HashB(script))
	s.scripts[toHash160(btcutil.Hash160(script))] = script
	s.witnessScripts[wsh] = script
}

// Script returns the script whose HASH160 equals the given hash.
func (s *SigningProvider) Script(scriptHash []byte) ([]byte, bool) {
	script, ok := s.scripts[toHash160(scriptHash)]
	return script, ok
}

// WitnessScript returns the script whose single SHA256 equals the given
// hash.
func (s *SigningProvider) WitnessScript(witnessHash []byte) ([]byte, bool) {
	var hash chainhash.Hash
	copy(hash[:], witnessHash)
	script, ok := s.witnessScripts[hash]
	return script, ok
}

// Merge returns a new provider holding the union of the entries of a and b.
// Neither input is modified.  Because entries are content-addressed,
// colliding entries describe the same material and no information is lost.
func Merge(a, b *SigningProvider) *SigningProvider {
	merged := NewSigningProvider()
	for _, s := range []*SigningProvider{a, b} {
		if s == nil {
			continue
		}
		for id, wif := range s.keys {
			merged.keys[id] = wif
		}
		for id, pub := range s.pubKeys {
			merged.pubKeys[id] = pub
		}
		for id, script := range s.scripts {
			merged.scripts[id] = script
		}
		for hash, script := range s.witnessScripts {
			merged.witnessScripts[hash] = script
		}
	}
	return merged
}
