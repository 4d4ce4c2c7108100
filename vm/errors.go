// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"errors"
	"fmt"

	"github.com/ava-labs/simnet/clarity"
	"github.com/ava-labs/simnet/clarity/ast"
	"github.com/ava-labs/simnet/cost"
)

var (
	ErrWriteInReadOnly    = errors.New("write operation attempted in read-only context")
	ErrNotPublic          = errors.New("not a public function")
	ErrNotPrivate         = errors.New("not a private function")
	ErrNotReadOnly        = errors.New("not a read-only function")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrUnknownContract    = errors.New("contract not found")
	ErrContractExists     = errors.New("contract already exists")
	ErrMaxStackDepth      = errors.New("maximum stack depth exceeded")
	ErrArgumentCount      = errors.New("wrong number of arguments")
	ErrBadArgument        = errors.New("argument does not match the declared type")
	ErrVersionUnsupported = errors.New("clarity version is not supported in this epoch")
	ErrUnwrapFailed       = errors.New("unwrap failed")
	ErrNoSuchBlock        = errors.New("no block with this id")
	ErrSupplyExceeded     = errors.New("fungible token supply exceeded")
)

// MaxStackDepth bounds nested user function and contract calls.
const MaxStackDepth = 64

// AnalysisError is a semantic error found before execution. It never leaves
// state behind.
type AnalysisError struct {
	Message string
	Span    ast.Span
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.StartLine, e.Span.StartColumn, e.Message)
}

func analysisError(e *ast.Expr, format string, args ...interface{}) *AnalysisError {
	err := &AnalysisError{Message: fmt.Sprintf(format, args...)}
	if e != nil {
		err.Span = e.Span
	}
	return err
}

// RuntimeError aborts the running transaction.
type RuntimeError struct {
	Message string
	Span    ast.Span
	Err     error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %d:%d: %s", e.Span.StartLine, e.Span.StartColumn, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// earlyReturn carries the value of asserts!, unwrap! and try! up to the
// enclosing function.
type earlyReturn struct {
	value clarity.Value
}

func (*earlyReturn) Error() string { return "early return" }

// wrap turns err into a RuntimeError located at e unless it already belongs
// to another error class.
func wrap(e *ast.Expr, err error) error {
	if err == nil {
		return nil
	}
	var (
		rerr  *RuntimeError
		aerr  *AnalysisError
		lerr  *cost.LimitError
		early *earlyReturn
	)
	if errors.As(err, &rerr) || errors.As(err, &aerr) || errors.As(err, &lerr) || errors.As(err, &early) {
		return err
	}
	re := &RuntimeError{Message: err.Error(), Err: err}
	if e != nil {
		re.Span = e.Span
	}
	return re
}

func runtimeError(e *ast.Expr, format string, args ...interface{}) error {
	re := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	if e != nil {
		re.Span = e.Span
	}
	return re
}
