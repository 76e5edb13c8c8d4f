// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Command um assembles, disassembles and runs universal machine programs.
//
// Usage:
//
//	um program.um                 # Run a program image
//	um -c program.uma             # Assemble and run
//	um -c program.uma -s          # Assemble to program.um, do not run
//	um -d program.um              # Disassemble a program image
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ezrec/um/cpu"
	"github.com/ezrec/um/emulator"
	"github.com/ezrec/um/memory"
	"github.com/ezrec/um/translate"
)

var (
	ErrSaveWithoutCompile = translate.Error("-s requires -c")
	ErrNoImage            = translate.Error("no program image")
)

// config is the command line configuration.
type config struct {
	compile     string            // Assembly source to compile.
	save        bool              // Save the image, do not execute.
	image       string            // Program image to run, or write.
	input       string            // Tape input, "-" for stdin.
	output      string            // Tape output, "-" for stdout.
	verbose     bool              // Verbose mode.
	strict      bool              // Reject images truncated mid-word.
	disassemble bool              // Disassemble the image, do not execute.
	predefine   map[string]string // Assembler predefines.
}

func main() {
	cfg := config{
		predefine: map[string]string{},
	}

	flag.StringVar(&cfg.compile, "c", "", ".uma file to compile")
	flag.BoolVar(&cfg.save, "s", false, "Save compiled image, do not execute")
	flag.StringVar(&cfg.image, "o", "", "Compiled image output (default: .uma file with .um suffix)")
	flag.StringVar(&cfg.input, "i", "-", "Tape input")
	flag.StringVar(&cfg.output, "p", "-", "Tape output")
	flag.BoolVar(&cfg.verbose, "v", false, "Verbose mode")
	flag.BoolVar(&cfg.strict, "strict", false, "Reject images that end mid-word")
	flag.BoolVar(&cfg.disassemble, "d", false, "Disassemble, do not execute")
	flag.Func("D", "Predefine NAME=VALUE for the assembler", func(text string) error {
		name, value, ok := strings.Cut(text, "=")
		if !ok || len(name) == 0 {
			return cpu.ErrEquateSyntax
		}
		cfg.predefine[name] = value
		return nil
	})

	flag.Parse()

	switch {
	case flag.NArg() == 1 && len(cfg.compile) == 0:
		cfg.image = flag.Arg(0)
	case flag.NArg() != 0:
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	err := run(cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}
}

// assemble compiles the assembly source.
func assemble(cfg config, emu *emulator.Emulator) (prog *cpu.Program, err error) {
	inf, err := os.Open(cfg.compile)
	if err != nil {
		return
	}
	defer inf.Close()

	asm := &cpu.Assembler{Verbose: cfg.verbose}
	for name, value := range emu.Defines() {
		asm.Predefine(name, value)
	}
	for name, value := range cfg.predefine {
		asm.Predefine(name, value)
	}

	prog, err = asm.Parse(inf)
	if err != nil {
		err = fmt.Errorf("%v: %w", cfg.compile, err)
		return
	}

	return
}

// save writes the program image.
func save(prog *cpu.Program, path string) (err error) {
	ouf, err := os.Create(path)
	if err != nil {
		return
	}

	_, err = prog.WriteTo(ouf)
	close_err := ouf.Close()
	if err == nil {
		err = close_err
	}

	return
}

// disassemble lists every word of an image.
func disassemble(image []byte, strict bool, stdout io.Writer) (err error) {
	mem := memory.NewMemory()
	mem.Strict = strict
	defer mem.Close()

	words, err := mem.ReadImage(bytes.NewReader(image))
	if err != nil {
		return
	}

	w := bufio.NewWriter(stdout)
	for pc := range uint32(words) {
		var word uint32
		word, err = mem.Load(0, pc)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "%08x: %08x  %v\n", pc, word, cpu.Code(word))
	}

	err = w.Flush()
	return
}

// run executes the configuration.
func run(cfg config, stdin io.Reader, stdout io.Writer) (err error) {
	emu := emulator.NewEmulator()
	emu.Verbose = cfg.verbose
	emu.Memory.Strict = cfg.strict

	var prog *cpu.Program
	if len(cfg.compile) != 0 {
		prog, err = assemble(cfg, emu)
		if err != nil {
			return
		}

		if cfg.save {
			path := cfg.image
			if len(path) == 0 {
				path = strings.TrimSuffix(cfg.compile, ".uma") + ".um"
			}
			err = save(prog, path)
			return
		}
	} else if cfg.save {
		err = ErrSaveWithoutCompile
		return
	}

	if prog == nil && len(cfg.image) == 0 {
		err = ErrNoImage
		return
	}

	if cfg.disassemble {
		var image []byte
		if prog != nil {
			image = prog.Image()
		} else {
			image, err = os.ReadFile(cfg.image)
			if err != nil {
				return
			}
		}
		err = disassemble(image, cfg.strict, stdout)
		return
	}

	if prog != nil {
		err = emu.LoadProgram(prog)
	} else {
		var inf *os.File
		inf, err = os.Open(cfg.image)
		if err != nil {
			return
		}
		defer inf.Close()
		err = emu.Load(inf)
	}
	if err != nil {
		return
	}

	if cfg.input == "-" {
		emu.Tape.Input = bufio.NewReader(stdin)
	} else {
		var inf *os.File
		inf, err = os.Open(cfg.input)
		if err != nil {
			return
		}
		defer inf.Close()
		emu.Tape.Input = bufio.NewReader(inf)
	}

	var ouf io.Writer = stdout
	if cfg.output != "-" {
		var file *os.File
		file, err = os.Create(cfg.output)
		if err != nil {
			return
		}
		defer file.Close()
		ouf = file
	}
	emu.Tape.Output = bufio.NewWriter(ouf)

	err = emu.Run()
	if err != nil {
		if cfg.verbose {
			log.Print(emu.Cpu.String())
		}
		return
	}

	if cfg.verbose {
		log.Printf("ticks: %d power: %d", emu.Ticks(), emu.Power())
	}

	return
}
