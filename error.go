package mvtree

import (
	"github.com/cockroachdb/errors"

	"github.com/alexhholmes/mvtree/internal/readslots"
)

var (
	ErrTxNotWritable = errors.New("transaction is read-only")
	ErrTxInProgress  = errors.New("write transaction already in progress")
	ErrTxDone        = errors.New("transaction has been committed or rolled back")
	ErrManagerClosed = errors.New("transaction manager is closed")

	ErrTooManyReaders = readslots.ErrTooManyReaders

	ErrIteratorExhausted = errors.New("iterator has no more elements")
	ErrInvalidBlockSize  = errors.New("invalid block size configuration")
)
