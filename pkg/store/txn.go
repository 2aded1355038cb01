package store

import (
	"fmt"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/metrics"
)

// stagedOp is one buffered append. Exactly one of obj/edge is set.
type stagedOp struct {
	obj  *ObjectRecord
	edge *EdgeRecord
}

type txnBuffer struct {
	ops []stagedOp
}

// Begin opens a transaction on this handle. Appends are staged until Commit;
// at most one transaction may be active.
func (s *Store) Begin() error {
	if !s.isOpen {
		return fmt.Errorf("%w: begin", errdefs.ErrNotOpen)
	}
	if s.txn != nil {
		return fmt.Errorf("%w: nested begin", errdefs.ErrTxnAlreadyOpen)
	}
	s.txn = &txnBuffer{}
	return nil
}

// Commit replays the staged appends in FIFO order. On the first failing
// append the error is returned and the remaining staged ops are kept; the
// caller decides whether to Rollback.
func (s *Store) Commit() error {
	if !s.isOpen {
		return fmt.Errorf("%w: commit", errdefs.ErrNotOpen)
	}
	if s.txn == nil {
		return nil
	}
	for len(s.txn.ops) > 0 {
		op := s.txn.ops[0]
		var err error
		if op.obj != nil {
			err = s.appendObject(*op.obj)
		} else {
			err = s.appendEdge(*op.edge)
		}
		if err != nil {
			return err
		}
		s.txn.ops = s.txn.ops[1:]
	}
	s.txn = nil
	metrics.TxnCommits.Inc()
	return nil
}

// Rollback discards the staging buffer. A rollback without an open
// transaction is a no-op.
func (s *Store) Rollback() error {
	if !s.isOpen {
		return fmt.Errorf("%w: rollback", errdefs.ErrNotOpen)
	}
	if s.txn == nil {
		return nil
	}
	s.txn = nil
	metrics.TxnRollbacks.Inc()
	return nil
}

// stagedLatestVersion returns the highest staged version for id, or 0.
func (t *txnBuffer) stagedLatestVersion(id ident.ObjectID) uint64 {
	var latest uint64
	for _, op := range t.ops {
		if op.obj != nil && op.obj.Ref.ID == id && uint64(op.obj.Ref.Ver) > latest {
			latest = uint64(op.obj.Ref.Ver)
		}
	}
	return latest
}
