package chain

// MemoWidth is the fixed memo field width accepted by the settlement chain.
// Ledger transaction IDs are UUID strings (36 bytes) and fit unchanged.
const MemoWidth = 40

// EncodeMemo pads or truncates a ledger transaction ID to the chain's fixed
// memo width. Encoding is deterministic so resubmissions of the same
// transaction carry an identical memo.
func EncodeMemo(txID string) string {
	if len(txID) >= MemoWidth {
		return txID[:MemoWidth]
	}
	buf := make([]byte, MemoWidth)
	copy(buf, txID)
	for i := len(txID); i < MemoWidth; i++ {
		buf[i] = ' '
	}
	return string(buf)
}
