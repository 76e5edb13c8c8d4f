package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/um/cpu"
)

var hello = []string{
	"        loadi r0 'H'",
	"        out r0",
	"        loadi r0 NL",
	"        out r0",
	"        halt",
}

func writeSource(t *testing.T, lines []string) (path string) {
	path = filepath.Join(t.TempDir(), "hello.uma")
	err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	return
}

func TestRunCompile(t *testing.T) {
	assert := assert.New(t)

	cfg := config{
		compile:   writeSource(t, hello),
		input:     "-",
		output:    "-",
		predefine: map[string]string{"NL": "10"},
	}

	stdout := &bytes.Buffer{}
	err := run(cfg, strings.NewReader(""), stdout)
	assert.NoError(err)
	assert.Equal("H\n", stdout.String())
}

func TestRunSave(t *testing.T) {
	assert := assert.New(t)

	source := writeSource(t, hello)
	cfg := config{
		compile:   source,
		save:      true,
		predefine: map[string]string{"NL": "10"},
	}

	err := run(cfg, nil, nil)
	assert.NoError(err)

	image, err := os.ReadFile(strings.TrimSuffix(source, ".uma") + ".um")
	assert.NoError(err)
	assert.Equal(5*4, len(image))

	// Run the saved image, with tape output to a file.
	output := filepath.Join(t.TempDir(), "output.txt")
	cfg = config{
		image:  strings.TrimSuffix(source, ".uma") + ".um",
		input:  "-",
		output: output,
	}
	err = run(cfg, strings.NewReader(""), nil)
	assert.NoError(err)

	text, err := os.ReadFile(output)
	assert.NoError(err)
	assert.Equal("H\n", string(text))
}

func TestRunDisassemble(t *testing.T) {
	assert := assert.New(t)

	cfg := config{
		compile:     writeSource(t, hello),
		disassemble: true,
		predefine:   map[string]string{"NL": "10"},
	}

	stdout := &bytes.Buffer{}
	err := run(cfg, nil, stdout)
	assert.NoError(err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(5, len(lines))
	assert.Equal("00000000: d0000048  loadi r0 0x48", lines[0])
	assert.Equal("00000004: 70000000  halt", lines[4])
}

func TestRunEcho(t *testing.T) {
	assert := assert.New(t)

	cfg := config{
		compile: writeSource(t, []string{
			"loop:   in r0",
			"        not r1 r0",
			"        loadi r2 done",
			"        loadi r3 put",
			"        cmov r2 r3 r1",
			"        loadi r4 0",
			"        loadp r4 r2",
			"put:    out r0",
			"        loadi r2 loop",
			"        loadp r4 r2",
			"done:   halt",
		}),
		input:  "-",
		output: "-",
	}

	stdout := &bytes.Buffer{}
	err := run(cfg, strings.NewReader("echo"), stdout)
	assert.NoError(err)
	assert.Equal("echo", stdout.String())
}

func TestRunErrors(t *testing.T) {
	assert := assert.New(t)

	err := run(config{save: true}, nil, nil)
	assert.ErrorIs(err, ErrSaveWithoutCompile)

	err = run(config{}, nil, nil)
	assert.ErrorIs(err, ErrNoImage)

	err = run(config{image: filepath.Join(t.TempDir(), "missing.um")}, nil, nil)
	assert.ErrorIs(err, os.ErrNotExist)

	cfg := config{
		compile: writeSource(t, []string{"loadi r0 UNDEFINED"}),
	}
	err = run(cfg, nil, nil)
	assert.ErrorIs(err, cpu.ErrLabelMissing("UNDEFINED"))

	cfg = config{
		compile: writeSource(t, []string{"loadi r1 0", "div r0 r0 r1"}),
		input:   "-",
		output:  "-",
	}
	stdout := &bytes.Buffer{}
	err = run(cfg, strings.NewReader(""), stdout)
	assert.ErrorIs(err, cpu.ErrDivideByZero)
	assert.Equal(0, stdout.Len())
}

func TestRunStrict(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "short.um")
	err := os.WriteFile(path, []byte{0x70, 0x00, 0x00, 0x00, 0x70}, 0o644)
	assert.NoError(err)

	cfg := config{image: path, input: "-", output: "-"}
	assert.NoError(run(cfg, strings.NewReader(""), &bytes.Buffer{}))

	cfg.strict = true
	err = run(cfg, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(err)

	cfg.disassemble = true
	err = run(cfg, nil, &bytes.Buffer{})
	assert.Error(err)
}
