package txflow

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// AttestationIDFromReceipt extracts the newly minted attestation ID from
// a confirmed attest receipt. The registry emits the ID as the data word
// of its first log entry, by construction of that contract; the position
// is a fixed external contract, so any registry ABI change lands here and
// only here.
func AttestationIDFromReceipt(receipt *types.Receipt) (common.Hash, error) {
	if receipt == nil || len(receipt.Logs) == 0 {
		return common.Hash{}, &TransactionError{Stage: "confirm", Err: fmt.Errorf("receipt carries no logs, cannot extract attestation ID")}
	}
	data := receipt.Logs[0].Data
	if len(data) != common.HashLength {
		return common.Hash{}, &TransactionError{Stage: "confirm", Err: fmt.Errorf("first log data is %d bytes, expected %d", len(data), common.HashLength)}
	}
	return common.BytesToHash(data), nil
}
