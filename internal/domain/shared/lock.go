package shared

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Locker provides mutual exclusion over named keys.
// Acquire blocks until the key is held or ctx is done; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}

// DocumentLockKey returns the lock key serializing payments against one document
func DocumentLockKey(documentID uuid.UUID) string {
	return fmt.Sprintf("ledger:document:%s", documentID)
}

// BankAccountLockKey returns the lock key serializing matching and closing on one account
func BankAccountLockKey(accountID uuid.UUID) string {
	return fmt.Sprintf("ledger:bank-account:%s", accountID)
}
