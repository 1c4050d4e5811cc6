package service

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"

	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

// storeError classifies a repository failure: an unreachable database surfaces
// as 503 so callers know to retry, anything else stays a 500.
func storeError(err error, message string) *appErrors.Error {
	if isConnectivityError(err) {
		return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// isConnectivityError reports whether the error points at the database being
// unreachable rather than at the query itself. lib/pq hands back io.EOF or
// driver.ErrBadConn on a dead connection and *net.OpError when the dial
// itself fails.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection exceptions; class 57 covers server
		// shutdown and "cannot connect now" states.
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	return false
}
