package wallet

import (
	"context"
	"errors"
)

var (
	ErrWalletNotFound  = errors.New("reimbursement wallet not found")
	ErrRequestNotFound = errors.New("reimbursement request not found")
)

type Repository interface {
	GetWallet(ctx context.Context, id int64) (*Wallet, error)
	GetReimbursementRequest(ctx context.Context, id int64) (*ReimbursementRequest, error)
}
