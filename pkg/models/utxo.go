package models

// UTXOValue is the spendable payload of an unspent output: either a
// cleartext amount or a confidential commitment, plus the locking script.
type UTXOValue struct {
	Amount     uint64
	Commitment *Commitment
	Script     []byte
}

// UTXO is a single entry of the unspent-output set, keyed by its outpoint
// one layer up (see internal/chain.UTXOSet) so the set can guarantee the
// "at most one occurrence" invariant with a plain map.
type UTXO struct {
	Outpoint OutPoint
	Value    UTXOValue
	Height   uint64
}
