// Copyright (c) 2024 The tapyrus-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package descriptor implements the output script descriptor mini-language.

A descriptor is a compact textual description of how to recognize or
construct spendable output scripts.  The language is built from a small set
of script functions wrapping key expressions:

	pk(KEY)             pay-to-pubkey
	pkh(KEY)            pay-to-pubkey-hash
	wpkh(KEY)           pay-to-witness-pubkey-hash
	sh(SCRIPT)          pay-to-script-hash wrapper
	wsh(SCRIPT)         pay-to-witness-script-hash wrapper
	multi(k,KEY,...)    k-of-n bare multisig
	combo(KEY)          every standard single-key form at once

A KEY is a hex-encoded public key, a WIF-encoded private key, or a BIP32
extended key followed by a derivation path such as /44'/0/5.  Hardened path
elements may be spelled with either an apostrophe or the letter h; both
normalize to the same internal form and render canonically with an
apostrophe.  A path ending in /* (or /*' for hardened children) makes the
descriptor ranged: it describes one output script per external index.

Parsing a descriptor that carries private material (WIF keys or extended
private keys) records that material into a SigningProvider as a side effect.
Expansion resolves every key expression to a concrete public key, deriving
through extended keys as needed, and emits the output scripts together with
a provider holding the embedded scripts and keys discovered along the way.
Serialization is dual: String always renders the public form, while
ToPrivateString renders the private form when a provider can supply the
private material.

Errors

Errors returned by this package are of the form descriptor.ErrX and may be
tested with errors.Is.  See Variables in the package documentation for the
full list.
*/
package descriptor
