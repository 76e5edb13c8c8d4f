package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assemble(t *testing.T, program []string) (asm *Assembler, prog *Program) {
	asm = &Assembler{}

	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	if err != nil {
		t.Fatal(err)
	}

	return
}

func opEqual(t *testing.T, expected, opcodes []Opcode) {
	assert := assert.New(t)

	assert.Equal(len(expected), len(opcodes))
	if len(expected) == len(opcodes) {
		for n := range len(expected) {
			assert.Equal(expected[n], opcodes[n])
		}
	}
}

func TestAssembler(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Opcodes))
	assert.Equal("0", asm.Equate["LINENO"])
}

func TestAssemblerHello(t *testing.T) {
	_, prog := assemble(t, []string{
		"; say H",
		"start:  loadi r0 'H'",
		"        loadi r1 10     ; newline",
		"\tout r0",
		"        halt",
	})

	expected := []Opcode{
		{2, 0, []string{"loadi", "r0", "72"}, []Code{0xd000_0048}, ""},
		{3, 1, []string{"loadi", "r1", "10"}, []Code{0xd200_000a}, ""},
		{4, 2, []string{"out", "r0"}, []Code{0xa000_0000}, ""},
		{5, 3, []string{"halt"}, []Code{0x7000_0000}, ""},
	}

	opEqual(t, expected, prog.Opcodes)
	assert.Equal(t, []uint32{0xd000_0048, 0xd200_000a, 0xa000_0000, 0x7000_0000}, prog.Binary())
}

func TestAssemblerThreeRegister(t *testing.T) {
	_, prog := assemble(t, []string{
		"cmov r1 r2 r3",
		"load r1 r2 r3",
		"store r1 r2 r3",
		"add r1 r2 r3",
		"mul r1 r2 r3",
		"div r1 r2 r3",
		"nand r1 r2 r3",
		"map r2 r3",
		"unmap r3",
		"in r3",
		"loadp r2 r3",
	})

	assert.Equal(t, []uint32{
		0x0000_0053,
		0x1000_0053,
		0x2000_0053,
		0x3000_0053,
		0x4000_0053,
		0x5000_0053,
		0x6000_0053,
		0x8000_0013,
		0x9000_0003,
		0xb000_0003,
		0xc000_0013,
	}, prog.Binary())
}

func TestAssemblerAliases(t *testing.T) {
	_, prog := assemble(t, []string{
		"nop",
		"not r1 r2",
		"alloc r1 r2",
		"free r1",
	})

	assert.Equal(t, []uint32{
		0x0000_0000,
		0x6000_0052,
		0x8000_000a,
		0x9000_0001,
	}, prog.Binary())
	assert.Equal(t, []string{"not", "r1", "r2"}, prog.Opcodes[1].Words)
}

func TestAssemblerEquate(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("BASE", "0x10")

	program := []string{
		".equ CHAR 0x41",
		".equ COUNT 2",
		"loadi r0 CHAR",
		"loadi r1 $(COUNT * 3 + 1)",
		"loadi r2 BASE",
		"loadi r3 $(LINENO)",
		"loadi r4 ~0xfe000000",
	}

	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal([]uint32{
		0xd000_0041,
		0xd200_0007,
		0xd400_0010,
		0xd600_0006,
		0xd9ff_ffff,
	}, prog.Binary())
	assert.Equal([]string{"loadi", "r0", "0x41"}, prog.Opcodes[0].Words)
	assert.Equal("0x41", asm.Equate["CHAR"])
}

func TestAssemblerCharacters(t *testing.T) {
	_, prog := assemble(t, []string{
		`loadi r0 'a'`,
		`loadi r0 ' '`,
		`loadi r0 '\n'`,
		`loadi r0 '\t'`,
		`loadi r0 '\\'`,
		`loadi r0 '\0'`,
		`.word 'U' 'M'`,
	})

	assert.Equal(t, []uint32{
		0xd000_0061,
		0xd000_0020,
		0xd000_000a,
		0xd000_0009,
		0xd000_005c,
		0xd000_0000,
		0x55,
		0x4d,
	}, prog.Binary())
}

func TestAssemblerLabels(t *testing.T) {
	assert := assert.New(t)

	asm, prog := assemble(t, []string{
		"        loadi r7 end",
		"        loadp r0 r7     ; r0 is zero",
		"        out r0",
		"end:    halt",
		"table:  .word end",
		"        .word 1 2 3",
		"        loadi r1 $(table + 1)",
	})

	assert.Equal(3, asm.Label["end"])
	assert.Equal(4, asm.Label["table"])
	assert.Equal([]uint32{
		0xde00_0003,
		0xc000_0007,
		0xa000_0000,
		0x7000_0000,
		0x0000_0003,
		1, 2, 3,
		0xd200_0005,
	}, prog.Binary())
	assert.Equal("end", prog.Opcodes[0].LinkLabel)
	assert.Equal(5, prog.Opcodes[5].Ip)
}

func TestAssemblerMacro(t *testing.T) {
	assert := assert.New(t)

	asm, prog := assemble(t, []string{
		".macro skip",
		"  loadi r7 @next",
		"  loadp r0 r7",
		"  halt",
		"@next:",
		".endm",
		"skip",
		"skip",
		"halt",
	})

	assert.Equal(3, asm.Label["skip_1_next"])
	assert.Equal(6, asm.Label["skip_2_next"])
	assert.Equal([]uint32{
		0xde00_0003, 0xc000_0007, 0x7000_0000,
		0xde00_0006, 0xc000_0007, 0x7000_0000,
		0x7000_0000,
	}, prog.Binary())
	assert.Equal(2, prog.Opcodes[0].LineNo)
	assert.Equal(2, prog.Opcodes[3].LineNo)
	assert.Equal(9, prog.Opcodes[6].LineNo)
}

func TestAssemblerMacroArgs(t *testing.T) {
	assert := assert.New(t)

	asm, prog := assemble(t, []string{
		".macro emit reg value",
		"  loadi reg value",
		"  out reg",
		".endm",
		"emit r3 'A'",
		"emit r4 $(0x40 + 2)",
	})

	assert.Equal([]uint32{
		0xd600_0041, 0xa000_0003,
		0xd800_0042, 0xa000_0004,
	}, prog.Binary())

	// Macro arguments do not leak as equates.
	_, ok := asm.Equate["reg"]
	assert.False(ok)
}

func TestAssemblerErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		program string
		err     error
		lineno  int
	}){
		{"loadi r0 0x2000000", ErrImmediateRange, 1},
		{"add r0 r1", ErrOpcodeValueMissing, 1},
		{"add r0 r1 r2 r3", ErrOpcodeExtraArgs, 1},
		{"add r0 r1 r8", ErrRegisterInvalid, 1},
		{"out 5", ErrParseValue("5"), 1},
		{"frob r0", ErrInstructionInvalid, 1},
		{"halt r0", ErrOpcodeExtraArgs, 1},
		{"loadi r0", ErrOpcodeValueMissing, 1},
		{"loadi r0 1x", ErrParseNumber("1x"), 1},
		{"loadi r0 nowhere", ErrLabelMissing("nowhere"), 1},
		{".word", ErrOpcodeValueMissing, 1},
		{".word a b", ErrLabelInvalid, 1},
		{".equ A", ErrEquateSyntax, 1},
		{".equ A 1\n.equ A 2", ErrEquateDuplicate, 2},
		{"x: halt\nx: halt", ErrLabelDuplicate, 2},
		{"1x: halt", ErrLabelInvalid, 1},
		{".macro", ErrMacroSyntax, 1},
		{".macro m\n.macro n", ErrMacroNesting, 2},
		{".macro m\nhalt", ErrMacroLonely, 2},
		{".endm", ErrMacroLonelyEndm, 1},
		{".macro m\n.endm\n.macro m", ErrMacroDuplicate, 3},
		{".macro m a\n.endm\nm", ErrMacroSyntax, 3},
		{".macro m\nfrob\n.endm\nhalt\nm", ErrInstructionInvalid, 5},
	}

	for _, entry := range table {
		asm := &Assembler{}
		_, err := asm.Parse(strings.NewReader(entry.program))
		assert.ErrorIs(err, entry.err, entry.program)

		var syntax *ErrSyntax
		if assert.True(errors.As(err, &syntax), entry.program) {
			assert.Equal(entry.lineno, syntax.LineNo, entry.program)
		}
	}
}

func TestAssemblerMacroError(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader(".macro m\nnop\nfrob\n.endm\nm"))
	assert.ErrorIs(err, ErrInstructionInvalid)

	var macro *ErrMacro
	if assert.True(errors.As(err, &macro)) {
		assert.Equal("m", macro.Macro)
		assert.Equal(3, macro.Line)
	}
}

func TestAssemblerExpression(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	_, err := asm.Parse(strings.NewReader("loadi r0 $(1 +)"))
	assert.Error(err)

	_, err = asm.Parse(strings.NewReader(`loadi r0 $("text")`))
	assert.ErrorIs(err, ErrParseExpression(`"text"`))
}
