// Package shuffle produces committed, verifiable decks.
//
// A deck is derived from a 32 byte seed. The seed is mixed with HKDF from
// several independent entropy sources, each screened for obvious failure
// before it is used. A ChaCha20 keystream expanded from the seed drives a
// Fisher-Yates shuffle with rejection-sampled indices, and a second keystream
// provides per-position blinding values for the commitment.
//
// Before any card is dealt the dealer publishes a Commitment: one hiding leaf
// per deck position plus a root binding the leaves, the scheme and a digest of
// the seed. Each dealt card comes with a CardOpening that anyone holding the
// commitment can check with VerifyCard. When the hand is over Finalize
// releases the seed, and VerifyShuffle lets an auditor confirm that the whole
// order was derived from it and matches the commitment.
//
// Commitment schemes are pluggable through the Scheme interface. Two are
// provided: "hash" (salted BLAKE2b) and "pedersen" (Ed25519 points via kyber).
package shuffle
