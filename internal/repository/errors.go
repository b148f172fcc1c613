package repository

import "errors"

// Сигнальные ошибки хранилищ; сервисный слой переводит их в ErrorResponse.
var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateBid         = errors.New("freelancer already has a bid on this project")
	ErrProjectNotOpen       = errors.New("project is not open")
	ErrBidNotPending        = errors.New("bid is not pending")
	ErrProjectNotInProgress = errors.New("project is not in progress")
	ErrLedgerExists         = errors.New("ledger entry already exists for this project")
	ErrLedgerConflict       = errors.New("ledger entry changed concurrently")
)
