// Package ledger provides the money account value type and the only
// functions allowed to change a balance.
// All functions are pure: they return a new Account and never mutate input.
package ledger

import (
	"fmt"
	"math"

	"github.com/artpar/menagerie/domain/fault"
)

// Direction of a posting.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Account holds a non-negative integer balance (value type).
// The balance is unexported so that it can only change through this package.
type Account struct {
	balance int64
}

// Posting is a requested balance change.
type Posting struct {
	Direction Direction
	Amount    int64
	Reason    string // i18n key describing the cause
}

// Entry records an applied posting.
type Entry struct {
	Direction    Direction
	Amount       int64
	Reason       string
	BalanceAfter int64
}

// Open returns an account holding balance.
// Used when hydrating persisted state; negative balances are rejected.
func Open(balance int64) (Account, error) {
	if balance < 0 {
		return Account{}, fmt.Errorf("%w: negative opening balance %d", fault.ErrInvalidAmount, balance)
	}
	return Account{balance: balance}, nil
}

// Balance returns the current balance.
func (a Account) Balance() int64 {
	return a.balance
}

// Debit removes amount from the account.
// Fails with ErrInsufficientFunds when amount exceeds the balance; the
// returned account is then identical to a.
func Debit(a Account, amount int64, reason string) (Account, Entry, error) {
	if amount <= 0 {
		return a, Entry{}, fmt.Errorf("%w: debit of %d", fault.ErrInvalidAmount, amount)
	}
	if amount > a.balance {
		return a, Entry{}, fmt.Errorf("%w: need %d, have %d", fault.ErrInsufficientFunds, amount, a.balance)
	}
	next := Account{balance: a.balance - amount}
	return next, Entry{Direction: DirectionDebit, Amount: amount, Reason: reason, BalanceAfter: next.balance}, nil
}

// Credit adds amount to the account.
func Credit(a Account, amount int64, reason string) (Account, Entry, error) {
	if amount <= 0 {
		return a, Entry{}, fmt.Errorf("%w: credit of %d", fault.ErrInvalidAmount, amount)
	}
	if a.balance > math.MaxInt64-amount {
		return a, Entry{}, fmt.Errorf("%w: credit of %d overflows balance", fault.ErrInvalidAmount, amount)
	}
	next := Account{balance: a.balance + amount}
	return next, Entry{Direction: DirectionCredit, Amount: amount, Reason: reason, BalanceAfter: next.balance}, nil
}

// Apply runs postings in order as one unit.
// Either every posting succeeds, or the original account is returned with
// the first error and no entries.
func Apply(a Account, postings []Posting) (Account, []Entry, error) {
	cur := a
	entries := make([]Entry, 0, len(postings))
	for i, p := range postings {
		var (
			e   Entry
			err error
		)
		switch p.Direction {
		case DirectionCredit:
			cur, e, err = Credit(cur, p.Amount, p.Reason)
		case DirectionDebit:
			cur, e, err = Debit(cur, p.Amount, p.Reason)
		default:
			err = fmt.Errorf("%w: posting %d has direction %q", fault.ErrInvalidArgument, i, p.Direction)
		}
		if err != nil {
			return a, nil, err
		}
		entries = append(entries, e)
	}
	return cur, entries, nil
}

// CreditOf is shorthand for a credit posting.
func CreditOf(amount int64, reason string) Posting {
	return Posting{Direction: DirectionCredit, Amount: amount, Reason: reason}
}

// DebitOf is shorthand for a debit posting.
func DebitOf(amount int64, reason string) Posting {
	return Posting{Direction: DirectionDebit, Amount: amount, Reason: reason}
}

// Net returns the signed balance change of entries.
func Net(entries []Entry) int64 {
	var n int64
	for _, e := range entries {
		if e.Direction == DirectionCredit {
			n += e.Amount
		} else {
			n -= e.Amount
		}
	}
	return n
}
