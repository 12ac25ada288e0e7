// internal/domain/models/transaction.go
package models

import (
	"time"

	"github.com/crewfund/crew/internal/domain/money"
)

// TransactionKind classifies a ledger log entry.
type TransactionKind string

const (
	KindDonation   TransactionKind = "Donacion"
	KindWithdrawal TransactionKind = "Retiro"
	KindReclaim    TransactionKind = "Reclamo"
	KindRecharge   TransactionKind = "Recarga"
)

// Direction says which side of a movement an entry records.
type Direction string

const (
	Debit  Direction = "DEBITO"
	Credit Direction = "CREDITO"
)

// Well-known non-user endpoints of a movement.
const (
	SourceVirtualCard      = "virtual-card"
	SourceWithdrawableFund = "withdrawable-funds"
)

// Transaction is an append-only audit entry written after a balance
// mutation commits. It is never read back by the mutation logic.
type Transaction struct {
	ID             string          `bson:"_id" json:"id"`
	Amount         money.Cents     `bson:"amount" json:"amount"`
	Kind           TransactionKind `bson:"kind" json:"kind"`
	Direction      Direction       `bson:"direction" json:"direction"`
	SourceID       string          `bson:"source_id" json:"source_id"`
	DestinationID  string          `bson:"destination_id" json:"destination_id"`
	Description    string          `bson:"description,omitempty" json:"description,omitempty"`
	IdempotencyKey string          `bson:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
	Timestamp      time.Time       `bson:"timestamp" json:"timestamp"`
}
