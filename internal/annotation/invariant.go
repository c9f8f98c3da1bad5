package annotation

import (
	"fmt"
	"log/slog"

	spanerr "github.com/Aman-CERP/spanlabel/internal/errors"
)

// invariants reports broken internal invariants.
// Strict mode panics so construction bugs surface in development and tests;
// otherwise the violation is logged and the caller skips the operation.
type invariants struct {
	strict bool
	logger *slog.Logger
}

func (iv invariants) violated(op, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	err := spanerr.InvariantError(op+": "+msg, nil)
	if iv.strict {
		panic(err)
	}
	logger := iv.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("annotation invariant violated",
		slog.String("op", op),
		slog.String("error", err.Error()))
}
