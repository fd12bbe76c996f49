// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// IsSolvable reports whether prov holds enough material, in principle, to
// satisfy the given output script.  Pay-to-pubkey and bare multisig scripts
// embed their keys and are always solvable; hash-based templates are
// solvable when the preimage material is known, recursing through sh and wsh
// into the embedded script.  Callers typically pass the merge of the
// provider returned by Parse and the one returned by expansion.
func IsSolvable(prov *SigningProvider, pkScript []byte) bool {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, netParams)
	if err != nil {
		return false
	}

	switch class {
	case txscript.PubKeyTy, txscript.MultiSigTy:
		return true

	case txscript.PubKeyHashTy, txscript.WitnessV0PubKeyHashTy:
		if len(addrs) != 1 {
			return false
		}
		_, ok := prov.PubKey(addrs[0].ScriptAddress())
		return ok

	case txscript.ScriptHashTy:
		if len(addrs) != 1 {
			return false
		}
		redeem, ok := prov.Script(addrs[0].ScriptAddress())
		return ok && IsSolvable(prov, redeem)

	case txscript.WitnessV0ScriptHashTy:
		if len(addrs) != 1 {
			return false
		}
		witness, ok := prov.WitnessScript(addrs[0].ScriptAddress())
		return ok && IsSolvable(prov, witness)
	}

	return false
}

// Sign solves the signature script for output idx of tx spending pkScript,
// drawing keys and redeem scripts from prov, and returns the resulting
// signature script.  Callers typically pass the merge of the provider
// returned by Parse and the one returned by expansion, so that keys derived
// from extended private keys during expansion are available here.
//
// Signing delegates to txscript.SignTxOutput, which does not solve witness
// programs; signing a wpkh or wsh output returns an error.
func Sign(prov *SigningProvider, tx *wire.MsgTx, idx int, pkScript []byte,
	hashType txscript.SigHashType) ([]byte, error) {

	kdb := txscript.KeyClosure(func(addr btcutil.Address) (*btcec.PrivateKey,
		bool, error) {

		wif, ok := prov.Key(providerID(addr))
		if !ok {
			return nil, false, fmt.Errorf("%w: no private key for "+
				"%s", ErrPrivateKeyUnavailable, addr)
		}
		return wif.PrivKey, wif.CompressPubKey, nil
	})
	sdb := txscript.ScriptClosure(func(addr btcutil.Address) ([]byte, error) {
		script, ok := prov.Script(providerID(addr))
		if !ok {
			return nil, fmt.Errorf("no redeem script for %s", addr)
		}
		return script, nil
	})

	return txscript.SignTxOutput(
		netParams, tx, idx, pkScript, hashType, kdb, sdb, nil,
	)
}

// providerID maps an address handed out by the signing machinery to the
// HASH160 identity the provider indexes by.  Pay-to-pubkey addresses expose
// the serialized key itself rather than its hash.
func providerID(addr btcutil.Address) []byte {
	if a, ok := addr.(*btcutil.AddressPubKey); ok {
		return btcutil.Hash160(a.ScriptAddress())
	}
	return addr.ScriptAddress()
}
