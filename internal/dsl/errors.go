package dsl

import (
	"fmt"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// errParse and errCommand are local aliases of the domain sentinels so
// the lexer/parser/evaluator can wrap with local context without
// importing domain at every call site.
var (
	errParse   = domain.ErrParse
	errCommand = domain.ErrCommand
	errInfra   = domain.ErrInfra
)

func parseErrorf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errParse)...)
}
