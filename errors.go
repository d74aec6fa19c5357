package brainfrick

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("brainfrick")

	TapeIndexOutOfRange    = Errors.NewType("tape_index_out_of_range")
	ProgramIndexOutOfRange = Errors.NewType("program_index_out_of_range")
	OutputFailed           = Errors.NewType("output_failed")
	StepLimitExceeded      = Errors.NewType("step_limit_exceeded")
	Cancelled              = Errors.NewType("cancelled")
	UnbalancedBracket      = Errors.NewType("unbalanced_bracket")
	InvalidConfig          = Errors.NewType("invalid_config")
)

var (
	errSourcePositionProperty = errorx.RegisterProperty("sourcePosition")
	errProgramCounterProperty = errorx.RegisterProperty("programCounter")
)

// SourcePosition returns the program offset attached to err, if any.
func SourcePosition(err error) (int, bool) {
	pos, ok := errorx.ExtractProperty(err, errSourcePositionProperty)
	if !ok {
		return 0, false
	}
	return pos.(int), true
}
