package errs

import (
	"context"
	"errors"
	"strings"
)

// kind is a sentinel that may refine a broader kind, so that
// errors.Is(ErrKeyNotFound, ErrNotFound) holds.
type kind struct {
	msg    string
	parent error
}

func (k *kind) Error() string { return k.msg }
func (k *kind) Unwrap() error { return k.parent }

func newKind(msg string, parent error) error {
	return &kind{msg: msg, parent: parent}
}

var (
	ErrNotFound                = errors.New("rowstore: not found")
	ErrKeyNotFound             = newKind("rowstore: key not found", ErrNotFound)
	ErrAlreadyExists           = errors.New("rowstore: already exists")
	ErrSchemaMismatch          = errors.New("rowstore: row does not match table schema")
	ErrNullPrimaryKey          = errors.New("rowstore: primary key is null")
	ErrDuplicateKey            = errors.New("rowstore: duplicate primary key")
	ErrKeyMismatch             = errors.New("rowstore: primary key cannot change on update")
	ErrCreationIncomplete      = errors.New("rowstore: table creation incomplete")
	ErrWriteVerificationFailed = errors.New("rowstore: write verification failed")
	ErrCorrupted               = errors.New("rowstore: corrupted")
	ErrIO                      = errors.New("rowstore: I/O error")

	ErrInvalidSchema = errors.New("rowstore: invalid schema")
	ErrInvalidValue  = errors.New("rowstore: invalid value")
	ErrValueTooLong  = errors.New("rowstore: value exceeds 65535 bytes")
	ErrReservedKey   = errors.New("rowstore: key is a reserved control key")
)

// IO marks err as an underlying I/O failure. Errors that already carry a
// kind from this package, and context errors, are returned unchanged.
func IO(err error) error {
	if err == nil {
		return nil
	}
	if HasKind(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrIO, err)
}

var kinds = []error{
	ErrNotFound, ErrAlreadyExists, ErrSchemaMismatch, ErrNullPrimaryKey,
	ErrDuplicateKey, ErrKeyMismatch, ErrCreationIncomplete,
	ErrWriteVerificationFailed, ErrCorrupted, ErrIO, ErrInvalidSchema,
	ErrInvalidValue, ErrValueTooLong, ErrReservedKey,
}

// HasKind reports whether err matches any of the kinds above.
func HasKind(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// OpError attaches the operation and the table coordinates to a failure.
type OpError struct {
	Op       string
	Database string
	Table    string
	Key      string
	Err      error
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Op)
	if e.Database != "" || e.Table != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.Database)
		if e.Table != "" {
			buf.WriteByte('.')
			buf.WriteString(e.Table)
		}
	}
	if e.Key != "" {
		buf.WriteString("/")
		buf.WriteString(e.Key)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// Op wraps err into an OpError, classifying unknown errors as I/O.
func Op(op, db, table, key string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) && oe.Op == op {
		return err
	}
	return &OpError{Op: op, Database: db, Table: table, Key: key, Err: IO(err)}
}
