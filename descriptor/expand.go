// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// Expand produces the output scripts of a non-ranged descriptor.  keys
// supplies private material for hardened derivation and may be nil.  It
// returns ErrIndexRequired for a ranged descriptor; use ExpandAt instead.
func (d *Descriptor) Expand(keys *SigningProvider) ([][]byte, *SigningProvider, error) {
	if d.IsRange() {
		return nil, nil, fmt.Errorf("%w: %s", ErrIndexRequired, d)
	}
	return d.ExpandAt(0, keys)
}

// ExpandAt produces the output scripts of the descriptor at the given
// wildcard index.  The index only participates where a wildcard exists and
// is ignored otherwise.  keys supplies private material for hardened
// derivation and may be nil.
//
// The returned provider holds every sub-script embedded inside sh or wsh
// wrappers, the resolved public keys, and any child private keys derived
// from extended private keys available in keys.  Expansion is atomic: on
// error no scripts and no provider are returned, and keys is never mutated.
func (d *Descriptor) ExpandAt(index uint32, keys *SigningProvider) ([][]byte, *SigningProvider, error) {
	if keys == nil {
		keys = NewSigningProvider()
	}
	out := NewSigningProvider()
	scripts, err := expandScript(d.root, index, keys, out)
	if err != nil {
		return nil, nil, err
	}
	log.Tracef("expanded %s at index %d into %d script(s)", d, index,
		len(scripts))
	return scripts, out, nil
}

// expandScript emits the output scripts of one node.  Every node emits
// exactly one script except combo, which emits each standard single-key
// form; combo cannot nest, so the wrappers can rely on a single child
// script.
func expandScript(n *node, index uint32, keys, out *SigningProvider) ([][]byte, error) {
	switch n.kind {
	case nodeCombo:
		return expandCombo(n.key, index, keys, out)

	case nodePk:
		pub, compressed, err := n.key.resolve(index, keys, out)
		if err != nil {
			return nil, err
		}
		script, err := pubKeyScript(pub, compressed)
		if err != nil {
			return nil, err
		}
		return [][]byte{script}, nil

	case nodePkh:
		pub, compressed, err := n.key.resolve(index, keys, out)
		if err != nil {
			return nil, err
		}
		script, err := pubKeyHashScript(pub, compressed)
		if err != nil {
			return nil, err
		}
		return [][]byte{script}, nil

	case nodeWpkh:
		pub, _, err := n.key.resolve(index, keys, out)
		if err != nil {
			return nil, err
		}
		script, err := witnessPubKeyHashScript(pub)
		if err != nil {
			return nil, err
		}
		return [][]byte{script}, nil

	case nodeMulti:
		addrs := make([]*btcutil.AddressPubKey, 0, len(n.keys))
		for _, key := range n.keys {
			pub, compressed, err := key.resolve(index, keys, out)
			if err != nil {
				return nil, err
			}
			addr, err := btcutil.NewAddressPubKey(
				serializePub(pub, compressed), netParams,
			)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, addr)
		}
		// Key order is significant and preserved as written.
		script, err := txscript.MultiSigScript(addrs, n.threshold)
		if err != nil {
			return nil, err
		}
		return [][]byte{script}, nil

	case nodeSh, nodeWsh:
		inner, err := expandScript(n.child, index, keys, out)
		if err != nil {
			return nil, err
		}
		embedded := inner[0]
		out.AddScript(embedded)
		var script []byte
		if n.kind == nodeSh {
			script, err = scriptHashScript(embedded)
		} else {
			script, err = witnessScriptHashScript(embedded)
		}
		if err != nil {
			return nil, err
		}
		return [][]byte{script}, nil
	}

	return nil, fmt.Errorf("%w: unknown node kind %d",
		ErrMalformedDescriptor, n.kind)
}

// expandCombo emits the standard single-key forms for a key: pay-to-pubkey
// and pay-to-pubkey-hash always, followed by pay-to-witness-pubkey-hash and
// its pay-to-script-hash wrapping when the key is compressed.  An
// uncompressed key cannot appear in a witness program, so it yields only the
// first two.
func expandCombo(key *keyExpr, index uint32, keys, out *SigningProvider) ([][]byte, error) {
	pub, compressed, err := key.resolve(index, keys, out)
	if err != nil {
		return nil, err
	}

	p2pk, err := pubKeyScript(pub, compressed)
	if err != nil {
		return nil, err
	}
	p2pkh, err := pubKeyHashScript(pub, compressed)
	if err != nil {
		return nil, err
	}
	scripts := [][]byte{p2pk, p2pkh}
	if !compressed {
		return scripts, nil
	}

	p2wpkh, err := witnessPubKeyHashScript(pub)
	if err != nil {
		return nil, err
	}
	out.AddScript(p2wpkh)
	wrapped, err := scriptHashScript(p2wpkh)
	if err != nil {
		return nil, err
	}
	return append(scripts, p2wpkh, wrapped), nil
}

// serializePub serializes a public key in the requested compression.
func serializePub(pub *btcec.PublicKey, compressed bool) []byte {
	if compressed {
		return pub.SerializeCompressed()
	}
	return pub.SerializeUncompressed()
}

// pubKeyScript returns the pay-to-pubkey script for the key.
func pubKeyScript(pub *btcec.PublicKey, compressed bool) ([]byte, error) {
	addr, err := btcutil.NewAddressPubKey(
		serializePub(pub, compressed), netParams,
	)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// pubKeyHashScript returns the pay-to-pubkey-hash script for the key, with
// the hash committing to the requested compression.
func pubKeyHashScript(pub *btcec.PublicKey, compressed bool) ([]byte, error) {
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(serializePub(pub, compressed)), netParams,
	)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// witnessPubKeyHashScript returns the version 0 pay-to-witness-pubkey-hash
// script for the key.  Witness programs always commit to the compressed
// serialization.
func witnessPubKeyHashScript(pub *btcec.PublicKey) ([]byte, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pub.SerializeCompressed()), netParams,
	)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// scriptHashScript returns the pay-to-script-hash script committing to the
// given redeem script.
func scriptHashScript(redeem []byte) ([]byte, error) {
	addr, err := btcutil.NewAddressScriptHash(redeem, netParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// witnessScriptHashScript returns the version 0 pay-to-witness-script-hash
// script committing to the given witness script.
func witnessScriptHashScript(witness []byte) ([]byte, error) {
	addr, err := btcutil.NewAddressWitnessScriptHash(
		chainhash.HashB(witness), netParams,
	)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
