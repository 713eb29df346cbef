// Package report formats inspection results for people reading a terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/olekukonko/tablewriter"

	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/ldebug"
	"github.com/tanema/luapeek/src/lobject"
)

// TailCallMarker is printed after a frame that was entered through a tail call.
const TailCallMarker = "\t(...tail calls...)"

// Header prints the version, the inspected target and the time of the snapshot
// formatted with the strftime layout.
func Header(w io.Writer, layout string, now time.Time, target string) error {
	if layout == "" {
		layout = conf.TIMEFORMAT
	}
	strf, err := strftime.New(layout)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%v | %v | %v\n", conf.LUAPEEKVERSION, target, strf.FormatString(now))
	return err
}

// Traceback prints entries like luaL_traceback does, without function names.
func Traceback(w io.Writer, entries []ldebug.TraceEntry) {
	fmt.Fprintln(w, "stack traceback:")
	for _, entry := range entries {
		if entry.CurrentLine <= 0 {
			fmt.Fprintf(w, "\t%v: in %v\n", entry.ShortSrc, funcDescription(entry.Debug))
		} else {
			fmt.Fprintf(w, "\t%v:%v: in %v\n", entry.ShortSrc, entry.CurrentLine, funcDescription(entry.Debug))
		}
		if entry.IsTailCall {
			fmt.Fprintln(w, TailCallMarker)
		}
	}
}

func funcDescription(ar *ldebug.Debug) string {
	switch ar.What {
	case "main":
		return "main chunk"
	case "C", "":
		return "?"
	default:
		return fmt.Sprintf("function <%v:%v>", ar.ShortSrc, ar.LineDefined)
	}
}

// Stack prints a stack dump, topmost slot first.
func Stack(w io.Writer, slots []ldebug.Slot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Address", "Type", "Value"})
	table.SetAutoWrapText(false)
	for _, slot := range slots {
		table.Append([]string{
			strconv.Itoa(slot.Index),
			slot.Addr.String(),
			slot.Type,
			slot.Display,
		})
	}
	table.Render()
}

// Variables prints locals or upvalues with their values rendered by space.
func Variables(w io.Writer, space *lobject.Space, vars []ldebug.Variable) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Name", "Type", "Value", "Address"})
	table.SetAutoWrapText(false)
	for _, v := range vars {
		display, err := space.Describe(v.Value)
		if err != nil {
			return err
		}
		table.Append([]string{
			strconv.Itoa(v.Index),
			v.Name,
			lobject.TypeName(v.Value),
			display,
			v.Addr.String(),
		})
	}
	table.Render()
	return nil
}

// Threads prints the thread list, marking the main thread.
func Threads(w io.Writer, threads []*lobject.Thread, main *lobject.Thread) {
	for _, th := range threads {
		if main != nil && th.Addr == main.Addr {
			fmt.Fprintf(w, "[m]Thread: %v\n", th.Addr)
		} else {
			fmt.Fprintf(w, "Thread: %v\n", th.Addr)
		}
	}
}

// TValue prints one value with its type.
func TValue(w io.Writer, typeName, display string) {
	fmt.Fprintf(w, "[%v][%v]\n", typeName, display)
}

// Info prints the fields of a debug record.
func Info(w io.Writer, ar *ldebug.Debug) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	for _, row := range [][2]string{
		{"what", ar.What},
		{"source", ar.Source},
		{"short_src", ar.ShortSrc},
		{"currentline", strconv.FormatInt(ar.CurrentLine, 10)},
		{"linedefined", strconv.FormatInt(ar.LineDefined, 10)},
		{"lastlinedefined", strconv.FormatInt(ar.LastLineDefined, 10)},
		{"nups", strconv.Itoa(ar.NUps)},
		{"nparams", strconv.Itoa(ar.NParams)},
		{"isvararg", strconv.FormatBool(ar.IsVararg)},
		{"istailcall", strconv.FormatBool(ar.IsTailCall)},
		{"ftransfer", strconv.Itoa(ar.FTransfer)},
		{"ntransfer", strconv.Itoa(ar.NTransfer)},
	} {
		table.Append(row[:])
	}
	table.Render()
}
