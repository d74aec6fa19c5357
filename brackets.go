package brainfrick

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joomcode/errorx"
)

// Validate checks that every bracket in program has a partner. It is never
// called by Load or Eval.
func Validate(program []byte) error {
	if _, err := matchBrackets(program); err != nil {
		return wrapSourceError(err, program)
	}
	return nil
}

func jumpTable(prog []byte) (map[uint]uint, error) {
	return matchBrackets(prog)
}

// matchBrackets pairs every '[' with its ']' in both directions.
func matchBrackets(src []byte) (map[uint]uint, error) {
	res := map[uint]uint{}
	var open []uint
	for i, b := range src {
		switch opCode(b) {
		case opOpen:
			open = append(open, uint(i))
		case opClose:
			if len(open) == 0 {
				return nil, UnbalancedBracket.New("redundant bracket").WithProperty(errSourcePositionProperty, i)
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			res[start] = uint(i)
			res[uint(i)] = start
		}
	}
	if len(open) > 0 {
		return nil, UnbalancedBracket.New("can't find right bracket").WithProperty(errSourcePositionProperty, int(open[len(open)-1]))
	}
	return res, nil
}

func wrapSourceError(err error, src []byte) error {
	pos, ok := SourcePosition(err)
	if !ok || pos >= len(src) {
		return err
	}
	text := string(src)
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	lineEnd := strings.IndexByte(text[pos:], '\n')
	if lineEnd == -1 {
		lineEnd = len(text)
	} else {
		lineEnd = pos + lineEnd
	}
	line := strings.Count(text[:pos], "\n") + 1

	return errorx.Decorate(err, "line %d, Code: %s", line, text[lineStart:pos]+"^"+text[pos:lineEnd])
}

var mnemonics = map[opCode]string{
	opIncPtr:  "INCPTR",
	opDecPtr:  "DECPTR",
	opIncData: "INC",
	opDecData: "DEC",
	opOutput:  "OUT",
	opInput:   "IN",
	opOpen:    "JZ",
	opClose:   "JMP",
}

// CodeString lists the loaded instructions, skipping the sentinel and
// comment bytes. Bracket targets are shown when the program is balanced.
func (v *VM) CodeString() string {
	jumps := v.jumps
	if jumps == nil {
		jumps, _ = jumpTable(v.prog)
	}
	b := strings.Builder{}
	for i := 1; i < len(v.prog); i++ {
		name, ok := mnemonics[opCode(v.prog[i])]
		if !ok {
			continue
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteString(" ")
		b.WriteString(name)
		if target, ok := jumps[uint(i)]; ok {
			b.WriteString(fmt.Sprintf(" %d", target))
		}
		b.WriteString("\n")
	}
	return b.String()
}
