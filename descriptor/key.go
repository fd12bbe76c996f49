// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// The descriptor language encodes mainnet key material.
var netParams = &chaincfg.MainNetParams

// pathStep is one BIP32 derivation step in a key expression.
type pathStep struct {
	index    uint32
	hardened bool
}

// keyExpr is a parsed key expression.  Fixed keys populate pubKey and
// compressed; extended keys populate ext, always in its neutered (public)
// form, along with the derivation path.  Private material never lives in the
// tree; it is recorded into a SigningProvider at parse time and looked up by
// the HASH160 identity returned by id.
type keyExpr struct {
	pubKey     *btcec.PublicKey
	compressed bool

	ext              *hdkeychain.ExtendedKey
	path             []pathStep
	wildcard         bool
	wildcardHardened bool
}

// parseKeyExpr parses one key token.  The recognized forms, in order, are a
// WIF-encoded private key, a hex-encoded public key, and a base58-encoded
// extended key optionally followed by a derivation path.  Private material
// is recorded into prov as a side effect.
func parseKeyExpr(tok string, requireCompressed bool, prov *SigningProvider) (*keyExpr, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty key expression", ErrMalformedKey)
	}

	// WIF-encoded private key.
	if wif, err := btcutil.DecodeWIF(tok); err == nil {
		if !wif.IsForNet(netParams) {
			return nil, fmt.Errorf("%w: private key is not "+
				"for %s", ErrMalformedKey, netParams.Name)
		}
		if requireCompressed && !wif.CompressPubKey {
			return nil, fmt.Errorf("%w: uncompressed keys are not "+
				"allowed in witness scripts", ErrMalformedKey)
		}
		prov.AddKey(wif)
		return &keyExpr{
			pubKey:     wif.PrivKey.PubKey(),
			compressed: wif.CompressPubKey,
		}, nil
	}

	// Hex-encoded public key, compressed or uncompressed.
	if pkBytes, err := hex.DecodeString(tok); err == nil {
		pub, err := btcec.ParsePubKey(pkBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		compressed := len(pkBytes) == btcec.PubKeyBytesLenCompressed
		if requireCompressed && !compressed {
			return nil, fmt.Errorf("%w: uncompressed keys are not "+
				"allowed in witness scripts", ErrMalformedKey)
		}
		return &keyExpr{pubKey: pub, compressed: compressed}, nil
	}

	// Extended key with an optional derivation path.  Extended keys only
	// ever describe compressed public keys, so the witness compression
	// requirement is always met.
	return parseExtendedKeyExpr(tok, prov)
}

func parseExtendedKeyExpr(tok string, prov *SigningProvider) (*keyExpr, error) {
	parts := strings.Split(tok, "/")
	ext, err := hdkeychain.NewKeyFromString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if !ext.IsForNet(netParams) {
		return nil, fmt.Errorf("%w: extended key is not for %s",
			ErrMalformedKey, netParams.Name)
	}

	k := &keyExpr{compressed: true}
	for i, seg := range parts[1:] {
		if k.wildcard {
			return nil, fmt.Errorf("%w: wildcard must be the final "+
				"path element", ErrMalformedKey)
		}

		switch seg {
		case "*", "*'", "*h":
			k.wildcard = true
			k.wildcardHardened = len(seg) == 2
			continue
		}

		// The apostrophe and letter hardened markers are equivalent
		// spellings and normalize to the same flag here.
		num, hardened := seg, false
		if strings.HasSuffix(seg, "'") || strings.HasSuffix(seg, "h") {
			num, hardened = seg[:len(seg)-1], true
		}
		index, err := strconv.ParseUint(num, 10, 32)
		if err != nil || index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: path element %d out of "+
				"range", ErrMalformedKey, i+1)
		}
		k.path = append(k.path, pathStep{
			index:    uint32(index),
			hardened: hardened,
		})
	}

	if !ext.IsPrivate() {
		k.ext = ext
		return k, nil
	}

	// An extended private key was supplied.  Record its raw private key
	// into the provider and keep only the neutered form in the tree; the
	// private form can be rebuilt from the two on demand.
	priv, err := ext.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	wif, err := btcutil.NewWIF(priv, netParams, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	neutered, err := ext.Neuter()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	prov.AddKey(wif)
	k.ext = neutered
	return k, nil
}

// serializedPub returns the public key bytes in the expression's declared
// compression.  Only valid for fixed keys.
func (k *keyExpr) serializedPub() []byte {
	if k.compressed {
		return k.pubKey.SerializeCompressed()
	}
	return k.pubKey.SerializeUncompressed()
}

// serializedLen returns the length the serialized public key contributes to
// a script.
func (k *keyExpr) serializedLen() int {
	if k.compressed {
		return btcec.PubKeyBytesLenCompressed
	}
	return 65
}

// id returns the provider identity under which private material for this
// expression is stored: the HASH160 of the public key in its declared
// compression.
func (k *keyExpr) id() []byte {
	if k.ext != nil {
		pub, _ := k.ext.ECPubKey()
		return btcutil.Hash160(pub.SerializeCompressed())
	}
	return btcutil.Hash160(k.serializedPub())
}

// isRange reports whether the expression carries a wildcard path element.
func (k *keyExpr) isRange() bool {
	return k.wildcard
}

// needsPrivate reports whether walking the path requires the private form of
// the extended key.
func (k *keyExpr) needsPrivate() bool {
	for _, step := range k.path {
		if step.hardened {
			return true
		}
	}
	return k.wildcard && k.wildcardHardened
}

// steps returns the full list of derivation steps, substituting index for
// the wildcard when present.
func (k *keyExpr) steps(index uint32) []pathStep {
	if !k.wildcard {
		return k.path
	}
	steps := make([]pathStep, 0, len(k.path)+1)
	steps = append(steps, k.path...)
	return append(steps, pathStep{index: index, hardened: k.wildcardHardened})
}

// pathString renders the derivation path in canonical form.  Hardened steps
// always use the apostrophe marker.
func (k *keyExpr) pathString() string {
	var sb strings.Builder
	for _, step := range k.path {
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(uint64(step.index), 10))
		if step.hardened {
			sb.WriteByte('\'')
		}
	}
	if k.wildcard {
		sb.WriteString("/*")
		if k.wildcardHardened {
			sb.WriteByte('\'')
		}
	}
	return sb.String()
}

// String renders the canonical public form of the key expression.
func (k *keyExpr) String() string {
	if k.ext != nil {
		return k.ext.String() + k.pathString()
	}
	return hex.EncodeToString(k.serializedPub())
}

// privString renders the private form of the key expression using material
// from the given provider.
func (k *keyExpr) privString(prov *SigningProvider) (string, error) {
	wif, ok := prov.Key(k.id())
	if !ok {
		return "", fmt.Errorf("%w: no private key for %s",
			ErrPrivateKeyUnavailable, k.String())
	}
	if k.ext == nil {
		return wif.String(), nil
	}
	return privateExt(k.ext, wif).String() + k.pathString(), nil
}

// privateExt rebuilds the private form of a neutered extended key from the
// raw private scalar held in a provider.  The chain code and metadata come
// from the public form, so the two encodings describe the same node.
func privateExt(pub *hdkeychain.ExtendedKey, wif *btcutil.WIF) *hdkeychain.ExtendedKey {
	var parentFP [4]byte
	binary.BigEndian.PutUint32(parentFP[:], pub.ParentFingerprint())
	return hdkeychain.NewExtendedKey(
		netParams.HDPrivateKeyID[:], wif.PrivKey.Serialize(),
		pub.ChainCode(), parentFP[:], pub.Depth(), pub.ChildIndex(),
		true,
	)
}

// resolve returns the concrete public key the expression describes at the
// given wildcard index, deriving through the extended key as needed.  The
// resolved public key is recorded into out, as is any child private key
// derived along the way, so that later signing does not need to repeat the
// walk.  Hardened steps require the master private key to be present in
// keys.
func (k *keyExpr) resolve(index uint32, keys, out *SigningProvider) (*btcec.PublicKey, bool, error) {
	if k.ext == nil {
		out.addPubKey(k.serializedPub(), k.pubKey)
		return k.pubKey, k.compressed, nil
	}

	node := k.ext
	if wif, ok := keys.Key(k.id()); ok {
		node = privateExt(k.ext, wif)
	} else if k.needsPrivate() {
		return nil, false, fmt.Errorf("%w: path of %s contains a "+
			"hardened element", ErrRequiresPrivateKey, k.String())
	}

	for _, step := range k.steps(index) {
		childIndex := step.index
		if step.hardened {
			childIndex += hdkeychain.HardenedKeyStart
		}
		child, err := node.Derive(childIndex)
		if err != nil {
			return nil, false, fmt.Errorf("%w: deriving child %d "+
				"of %s: %v", ErrKeyMaterialMissing, step.index,
				k.String(), err)
		}
		node = child
	}

	pub, err := node.ECPubKey()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrKeyMaterialMissing, err)
	}
	if node.IsPrivate() {
		priv, err := node.ECPrivKey()
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v",
				ErrKeyMaterialMissing, err)
		}
		wif, err := btcutil.NewWIF(priv, netParams, true)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v",
				ErrKeyMaterialMissing, err)
		}
		out.AddKey(wif)
	}
	out.addPubKey(pub.SerializeCompressed(), pub)
	return pub, true, nil
}
