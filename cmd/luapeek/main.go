// Package main is the luapeek command line tool. It attaches to a paused
// process or opens a core file and prints what a Lua 5.4 state is doing.
package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/report"
	"github.com/tanema/luapeek/src/shell"
)

var cfg struct {
	verbose    bool
	pid        int
	core       string
	layout     string
	metrics    bool
	header     bool
	timeFormat string
	cacheSize  int
	state      string
	addr       string
	level      int
	options    string
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(log.NewSyncWriter(consoleOutput))
)

func main() {
	app := kingpin.New("luapeek", "Inspect the Lua call stack of a paused process or a core file.").UsageWriter(os.Stdout)
	app.Version(conf.FullVersion())
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&cfg.verbose)
	app.Flag("pid", "Read the memory of this process, it should be stopped.").Short('p').IntVar(&cfg.pid)
	app.Flag("core", "Read memory from this core file.").Short('c').ExistingFileVar(&cfg.core)
	app.Flag("layout", "TOML file describing the interpreter struct layout.").ExistingFileVar(&cfg.layout)
	app.Flag("metrics", "Print target read counters when done.").BoolVar(&cfg.metrics)
	app.Flag("header", "Print a header naming the target before the report.").BoolVar(&cfg.header)
	app.Flag("time-format", "strftime layout of the header time.").Default(conf.TIMEFORMAT).StringVar(&cfg.timeFormat)
	app.Flag("cache-pages", "Number of target pages kept in the read cache.").Default("1024").IntVar(&cfg.cacheSize)

	backtraceCmd := stateCommand(app, "backtrace", "Print the Lua call stack.").Alias("bt")
	stackCmd := stateCommand(app, "stack", "Print every value on the Lua stack.")
	coroutinesCmd := stateCommand(app, "coroutines", "List the main thread and every coroutine.")
	localsCmd := stateCommand(app, "locals", "Print the local variables of a frame.")
	localsCmd.Flag("level", "Frame level, 0 is the running function.").Short('l').Default("0").IntVar(&cfg.level)
	upvaluesCmd := stateCommand(app, "upvalues", "Print the upvalues of the function running in a frame.")
	upvaluesCmd.Flag("level", "Frame level, 0 is the running function.").Short('l').Default("0").IntVar(&cfg.level)
	infoCmd := stateCommand(app, "info", "Print the debug info of a frame.")
	infoCmd.Flag("level", "Frame level, 0 is the running function.").Short('l').Default("0").IntVar(&cfg.level)
	infoCmd.Flag("options", "getinfo option characters.").Short('o').Default("Slutr").StringVar(&cfg.options)
	shellCmd := stateCommand(app, "shell", "Start an interactive shell.")
	tvalueCmd := app.Command("tvalue", "Print the tagged value stored at an address.")
	tvalueCmd.Arg("address", "Address of the TValue.").Required().StringVar(&cfg.addr)

	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	var line string
	switch parsedCmd {
	case backtraceCmd.FullCommand():
		line = "backtrace"
	case stackCmd.FullCommand():
		line = "stack"
	case coroutinesCmd.FullCommand():
		line = "coroutines"
	case localsCmd.FullCommand():
		line = fmt.Sprintf("locals %d", cfg.level)
	case upvaluesCmd.FullCommand():
		line = fmt.Sprintf("upvalues %d", cfg.level)
	case infoCmd.FullCommand():
		line = fmt.Sprintf("info %d %v", cfg.level, cfg.options)
	case tvalueCmd.FullCommand():
		line = "tvalue " + cfg.addr
	case shellCmd.FullCommand():
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
		os.Exit(1)
	}
	stopProfiling := func() {}
	if path := os.Getenv("LUAPEEK_PROFILE"); path != "" {
		stopProfiling = runProfiling(path)
	}
	code := checkError(run(line))
	stopProfiling()
	os.Exit(code)
}

func stateCommand(app *kingpin.Application, name, help string) *kingpin.CmdClause {
	cmd := app.Command(name, help)
	cmd.Arg("state", "Address of the lua_State, in hex.").Required().StringVar(&cfg.state)
	return cmd
}

// run executes line against the target, or starts the shell when line is empty.
func run(line string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	if cfg.metrics {
		defer func() { _ = sess.dumpMetrics(os.Stderr) }()
	}

	sh := shell.New(shell.Config{
		Space:      sess.space,
		Refresh:    sess.refresh,
		Attach:     sess.attach(cfg.state),
		Out:        os.Stdout,
		Logger:     logger,
		Target:     sess.name,
		TimeFormat: cfg.timeFormat,
	})
	if line == "" {
		printVersion()
		fmt.Fprint(os.Stderr, "Type help for commands, ctrl-c or ctrl-d to quit.\n")
		return sh.Run()
	}
	if cfg.header {
		if err := report.Header(os.Stdout, cfg.timeFormat, time.Now(), sess.name); err != nil {
			return err
		}
	}
	return sh.Exec(line)
}

func printVersion() {
	fmt.Fprintf(os.Stderr, "%v\n", conf.FullVersion())
}

func runProfiling(filename string) func() {
	f, err := os.Create(filename)
	if err != nil {
		os.Exit(checkError(err))
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		os.Exit(checkError(err))
	}
	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
