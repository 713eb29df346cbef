// Package shell is an interactive prompt over one attached target. The target
// is re-read before every command so a process that ran in between is seen as
// it is now.
package shell

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/tanema/luapeek/src/ldebug"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/report"
	"github.com/tanema/luapeek/src/target"
)

type (
	// Attach reads the inspected lua_State afresh.
	Attach func() (*ldebug.State, error)
	// Config holds what a shell needs to run. Space is used by commands that
	// read raw addresses, Attach by the ones that walk a lua_State. Refresh, when
	// set, runs before every command to drop anything read from the target.
	Config struct {
		Space      *lobject.Space
		Refresh    func()
		Attach     Attach
		Out        io.Writer
		Logger     log.Logger
		Target     string
		TimeFormat string
	}
	// Shell runs inspection commands against the state returned by Attach.
	Shell struct {
		Config
		level int
	}
	command struct {
		usage    string
		help     string
		detached bool
		run      func(sh *Shell, L *ldebug.State, args []string) error
	}
)

var errQuit = errors.New("quit")

var commands map[string]command

func init() {
	commands = map[string]command{
		"backtrace":  {"backtrace", "print the Lua call stack", false, (*Shell).backtrace},
		"stack":      {"stack", "print every value on the Lua stack", false, (*Shell).stack},
		"frame":      {"frame [LEVEL]", "select the frame used by locals, upvalues and info", false, (*Shell).frame},
		"locals":     {"locals [LEVEL]", "print the local variables of a frame", false, (*Shell).locals},
		"upvalues":   {"upvalues [LEVEL]", "print the upvalues of the function running in a frame", false, (*Shell).upvalues},
		"info":       {"info [LEVEL] [OPTIONS]", "print getinfo fields of a frame, OPTIONS defaults to Slutr", false, (*Shell).info},
		"tvalue":     {"tvalue ADDRESS", "print the tagged value stored at ADDRESS", true, (*Shell).tvalue},
		"coroutines": {"coroutines", "list the main thread and every coroutine", false, (*Shell).coroutines},
		"header":     {"header", "print the version, target and current time", true, (*Shell).header},
		"help":       {"help", "list commands", true, (*Shell).help},
		"quit":       {"quit", "leave the shell", true, func(*Shell, *ldebug.State, []string) error { return errQuit }},
	}
	commands["bt"] = commands["backtrace"]
}

// New creates a shell. A nil Logger discards everything.
func New(cfg Config) *Shell {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	return &Shell{Config: cfg}
}

// Exec runs one command line. Commands and their arguments are separated by
// white space.
func (sh *Shell) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
	level.Debug(sh.Logger).Log("msg", "exec", "cmd", args[0], "level", sh.level)
	if sh.Refresh != nil {
		sh.Refresh()
	}
	if cmd.detached {
		return cmd.run(sh, nil, args[1:])
	}
	L, err := sh.Attach()
	if err != nil {
		return err
	}
	return cmd.run(sh, L, args[1:])
}

// Run reads commands until quit, end of input or a second interrupt.
func (sh *Shell) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "(luapeek) ",
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) > 0 {
					fmt.Fprint(rl.Stderr(), "Press ctrl-c again to quit.\n")
					continue
				}
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintln(rl.Stderr(), err)
			continue
		}
		if err := sh.Exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(rl.Stderr(), err)
		}
	}
}

// frameArg resolves an optional level argument, falling back to the selected frame.
func (sh *Shell) frameArg(L *ldebug.State, args []string) (*ldebug.CallInfo, error) {
	lvl := sh.level
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("bad level %q", args[0])
		}
		lvl = n
	}
	ci, ok, err := L.GetStack(lvl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no frame at level %d", lvl)
	}
	return ci, nil
}

func (sh *Shell) backtrace(L *ldebug.State, _ []string) error {
	entries, err := L.Traceback()
	report.Traceback(sh.Out, entries)
	return err
}

func (sh *Shell) stack(L *ldebug.State, _ []string) error {
	slots, err := L.StackSlots()
	report.Stack(sh.Out, slots)
	return err
}

func (sh *Shell) frame(L *ldebug.State, args []string) error {
	ci, err := sh.frameArg(L, args)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		sh.level, _ = strconv.Atoi(args[0])
	}
	ar, err := L.GetInfo(ci, ldebug.TracebackWhat)
	if err != nil {
		return err
	}
	report.Traceback(sh.Out, []ldebug.TraceEntry{{Level: sh.level, Debug: ar}})
	return nil
}

func (sh *Shell) locals(L *ldebug.State, args []string) error {
	ci, err := sh.frameArg(L, args)
	if err != nil {
		return err
	}
	vars, err := L.Locals(ci)
	if err != nil {
		return err
	}
	return report.Variables(sh.Out, L.Space(), vars)
}

func (sh *Shell) upvalues(L *ldebug.State, args []string) error {
	ci, err := sh.frameArg(L, args)
	if err != nil {
		return err
	}
	fn, err := L.FuncValue(ci)
	if err != nil {
		return err
	}
	vars, err := L.Upvalues(fn)
	if err != nil {
		return err
	}
	return report.Variables(sh.Out, L.Space(), vars)
}

func (sh *Shell) info(L *ldebug.State, args []string) error {
	ci, err := sh.frameArg(L, args)
	if err != nil {
		return err
	}
	options := "Slutr"
	if len(args) > 1 {
		options = args[1]
	}
	ar, ok, err := L.GetInfoString(ci, options)
	report.Info(sh.Out, ar)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid option in %q", options)
	}
	return nil
}

func (sh *Shell) tvalue(_ *ldebug.State, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tvalue ADDRESS")
	}
	addr, err := ParseAddress(args[0])
	if err != nil {
		return err
	}
	space := sh.Space
	tv, err := space.TValue(addr)
	if err != nil {
		return err
	}
	display, err := space.Describe(tv)
	if err != nil {
		return err
	}
	report.TValue(sh.Out, lobject.TypeName(tv), display)
	return nil
}

func (sh *Shell) coroutines(L *ldebug.State, _ []string) error {
	threads, err := L.Threads()
	var main *lobject.Thread
	if len(threads) > 0 {
		main = threads[0]
	}
	report.Threads(sh.Out, threads, main)
	return err
}

func (sh *Shell) header(*ldebug.State, []string) error {
	return report.Header(sh.Out, sh.TimeFormat, time.Now(), sh.Target)
}

func (sh *Shell) help(*ldebug.State, []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := commands[name]
		if !strings.HasPrefix(cmd.usage, name) {
			continue
		}
		fmt.Fprintf(sh.Out, "  %-24v %v\n", cmd.usage, cmd.help)
	}
	return nil
}

// ParseAddress parses a hexadecimal address with or without a 0x prefix.
func ParseAddress(str string) (target.Address, error) {
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	addr, err := strconv.ParseUint(str, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", str)
	}
	return target.Address(addr), nil
}
