package exec

import (
	"fmt"

	"github.com/graphdb-core/graphdb/internal/errs"
)

var errCancelled = errs.ErrCancelled

func runtimeErrorf(format string, args ...any) error {
	return errs.New(errs.KindRuntimeError, fmt.Sprintf(format, args...))
}
