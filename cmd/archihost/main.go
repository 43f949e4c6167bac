// Command archihost is the host process of spec.md §6: it parses argv and
// an input file, initialises the context registry with the built-in
// interfaces of archctx that are not reachable through a dedicated opcode
// (memory, memory_mapping), merges CLI override parameters with the input
// file's module-level params, and runs the root instruction list.
//
// The CLI surface itself — argv parsing, help screens — is explicitly out
// of scope for the core per spec.md §1 ("external collaborators"); this
// file is deliberately the thinnest possible wiring around the package
// boundary the spec does define, using only the standard library's flag
// package.
package main

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"github.com/ivanp7/archipelago-sub002/applog"
	"github.com/ivanp7/archipelago-sub002/appsignal"
	"github.com/ivanp7/archipelago-sub002/archctx"
	"github.com/ivanp7/archipelago-sub002/input"
	"github.com/ivanp7/archipelago-sub002/instruction"
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/registry"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// paramsKey is the conventional registry key under which the merged
// module-level parameter list (CLI overrides prepended to the input file's
// own params, per SPEC_FULL.md Open Question 3) is published as a "pointer"
// context, so that instructions may reach it dynamically via dparams_key.
const paramsKey = "params"

// memoryInterfaceKey and memoryMappingInterfaceKey are the bootstrap keys
// under which archctx's memory/memory_mapping interfaces are registered as
// function-flagged "pointer" contexts, so the program can instantiate them
// by name with INIT_FROM_CONTEXT — the same mechanism a plugin-supplied
// context type would use, since neither built-in has a dedicated opcode
// (unlike parameters/pointer/array, per spec.md §4.7).
const (
	memoryInterfaceKey        = "archi.memory.interface"
	memoryMappingInterfaceKey = "archi.memory_mapping.interface"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cfg, code := parseArgs(argv)
	if code.IsError() {
		fmt.Fprintf(os.Stderr, "archihost: %s: %v\n", code, code.Err())
		return exitCode(code)
	}

	applog.Init(applog.Config{
		Level:  verbosityToLevel(cfg.verbosity),
		Colour: cfg.colour,
	})

	sig := appsignal.Start(appsignal.All(), nil)
	defer sig.Stop()

	img, code := input.Load(cfg.inputPath)
	if code.IsError() {
		applog.Error("cmd", "load %q: %s", cfg.inputPath, code)
		fmt.Fprintf(os.Stderr, "archihost: %s\n", code)
		return exitCode(code)
	}
	defer img.Close()

	reg := registry.New()
	if code := bootstrapBuiltins(reg); code.IsError() {
		applog.Error("cmd", "bootstrap: %s", code)
		return exitCode(code)
	}

	fileParams := paramlist.List{}
	if img.Header.Params != nil {
		fileParams = *img.Header.Params
	}
	merged := paramlist.Concat(cfg.overrides, fileParams)
	if code := reg.InitPointer(paramsKey, typedptr.Data1(unsafe.Pointer(&merged), unsafe.Sizeof(merged))); code.IsError() {
		applog.Error("cmd", "publish params: %s", code)
		return exitCode(code)
	}

	list := instruction.List{}
	if img.Header.Instructions != nil {
		list = *img.Header.Instructions
	}

	interp := &instruction.Interpreter{
		Registry:  reg,
		Strict:    cfg.strict,
		StaticRef: img.StaticRef,
		OnCondition: func(instr *instruction.Instruction, code status.Code) {
			applog.Warning("instruction", "key %q: op %v: %s", instr.Key, instr.Op, code)
		},
	}

	result := interp.Run(list)
	if result.IsError() {
		applog.Error("cmd", "run: %s", result)
		fmt.Fprintf(os.Stderr, "archihost: %s\n", result)
	}
	return exitCode(result)
}

// bootstrapBuiltins registers archctx.MemoryInterface and
// archctx.MemoryMappingInterface under their interface-holder keys, the
// convention InitFromContext expects of any context that exposes its own
// Interface for further instantiation (registry.interfaceFromValue).
func bootstrapBuiltins(reg *registry.Registry) status.Code {
	if code := reg.InitPointer(memoryInterfaceKey, typedptr.FuncPointer(archctx.MemoryInterface)); code.IsError() {
		return code
	}
	if code := reg.InitPointer(memoryMappingInterfaceKey, typedptr.FuncPointer(archctx.MemoryMappingInterface)); code.IsError() {
		return code
	}
	return status.Success
}

// exitCode maps a status.Code to a process exit status per spec.md §6's
// "max(0, abort_code) with errors producing non-zero": conditions and
// success pass their (small, non-negative) value straight through; an
// error's magnitude is preserved as a positive exit status so it is never
// mistaken for success while still satisfying "non-zero".
func exitCode(code status.Code) int {
	if code.IsError() {
		n := -int(code)
		if n == 0 || n > 255 {
			n = 1
		}
		return n
	}
	return int(code)
}

func verbosityToLevel(v int) applog.Level {
	switch {
	case v <= 0:
		return applog.LevelError
	case v == 1:
		return applog.LevelWarning
	case v == 2:
		return applog.LevelNotice
	case v == 3:
		return applog.LevelInformational
	default:
		return applog.LevelDebug
	}
}

// config holds the parsed CLI surface of spec.md §6: an input file path,
// optional verbosity, optional colour setting, and override key-value
// parameters that supplement the file's params list.
type config struct {
	inputPath string
	verbosity int
	colour    bool
	strict    bool
	overrides paramlist.List
}

// parseArgs parses argv into a config. Override parameters are given as
// repeated "-param name=value" flags; they are collected in argv order and
// then reversed so that Concat's head-wins semantics preserve "last -param
// wins among CLI overrides, all of which win over the file" (spec.md §6 /
// SPEC_FULL.md Open Question 3).
func parseArgs(argv []string) (config, status.Code) {
	fs := newFlagSet()
	verbosity := fs.Int("v", 0, "verbosity level (0..4)")
	colour := fs.Bool("colour", false, "enable ANSI colour in print output")
	strict := fs.Bool("strict", false, "abort on any positive (+1/+2) condition")
	var rawParams stringSliceFlag
	fs.Var(&rawParams, "param", "override parameter name=value (repeatable)")

	if err := fs.Parse(argv); err != nil {
		return config{}, status.Make(status.ModuleCmd, status.Misuse)
	}
	if fs.NArg() != 1 {
		return config{}, status.Make(status.ModuleCmd, status.Misuse)
	}

	overrides, code := buildOverrides(rawParams)
	if code.IsError() {
		return config{}, code
	}

	return config{
		inputPath: fs.Arg(0),
		verbosity: *verbosity,
		colour:    *colour,
		strict:    *strict,
		overrides: overrides,
	}, status.Success
}

// buildOverrides turns "name=value" strings into a paramlist.List of string
// Pointers in reverse flag order, the last -param at the head (so a later
// -param of the same name shadows an earlier one under the list's
// first-wins Get).
func buildOverrides(raw []string) (paramlist.List, status.Code) {
	var l paramlist.List
	for i := 0; i < len(raw); i++ {
		name, value, ok := strings.Cut(raw[i], "=")
		if !ok {
			return paramlist.List{}, status.Make(status.ModuleCmd, status.ValueErr)
		}
		v := value
		l = l.Prepend(name, typedptr.Data1(unsafe.Pointer(&v), unsafe.Sizeof(v)))
	}
	return l, status.Success
}
