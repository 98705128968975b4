package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/unit"
)

const historyFile = ".garnet_history"

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFile)
}

// runShell reads expressions and shell commands until EOF or quit.
// Expressions that end mid-form keep reading on a continuation prompt.
func runShell(machine *vm.VM) {
	fmt.Println("Garnet shell (type 'quit' to exit, ':help' for commands)")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	hist := historyPath()
	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	})

	var buf strings.Builder
	for {
		prompt := ">> "
		if buf.Len() > 0 {
			prompt = ".. "
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				buf.Reset()
				continue
			}
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			break
		}

		if buf.Len() == 0 {
			trimmed := strings.TrimSpace(input)
			if trimmed == "" {
				continue
			}
			if trimmed == "quit" || trimmed == "exit" {
				break
			}
			if strings.HasPrefix(trimmed, ":") {
				line.AppendHistory(trimmed)
				if !shellCommand(machine, trimmed) {
					break
				}
				continue
			}
		} else {
			buf.WriteString("\n")
		}
		buf.WriteString(input)

		src := buf.String()
		if _, err := unit.ParseExpr(src); err != nil && incomplete(err) {
			continue
		}
		buf.Reset()
		line.AppendHistory(strings.Join(strings.Fields(src), " "))
		evalAndPrint(machine, src)
	}

	if hist != "" {
		if f, err := os.Create(hist); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	fmt.Println()
}

// incomplete reports whether a parse failed only because input ran out.
func incomplete(err error) bool {
	var pe *unit.ParseError
	return errors.As(err, &pe) && strings.HasPrefix(pe.Msg, "unexpected end of input")
}

func evalAndPrint(machine *vm.VM, src string) {
	defer machine.ClearException()
	v, err := unit.Eval(machine, src)
	if err != nil {
		if _, ok := err.(*unit.ParseError); ok {
			fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
		return
	}
	fmt.Printf("=> %s\n", machine.Inspect(v))
}

var shellCommands = []string{
	":ancestors", ":constants", ":gc", ":help", ":load", ":methods",
	":require", ":send", ":units", "quit",
}

// shellCommand runs one ':' command. It returns false to leave the shell.
func shellCommand(machine *vm.VM, input string) bool {
	defer machine.ClearException()
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ":help", ":h", ":?":
		fmt.Println("Shell Commands:")
		fmt.Println("  :help, :h, :?           Show this help")
		fmt.Println("  :ancestors Const        Show the ancestor chain")
		fmt.Println("  :methods Const          Show public instance methods")
		fmt.Println("  :constants [Const]      Show constants (default Object)")
		fmt.Println("  :send Const.meth args   Send a message with literal arguments")
		fmt.Println("  :require path           Require a registered unit")
		fmt.Println("  :load path              Load a registered unit again")
		fmt.Println("  :units                  List registered units")
		fmt.Println("  :gc                     Collect unreachable modules")
		fmt.Println("  quit, exit              Leave the shell")
	case ":ancestors":
		mod, ok := shellModule(machine, args)
		if !ok {
			break
		}
		var names []string
		for _, a := range machine.Ancestors(mod) {
			names = append(names, machine.Inspect(a))
		}
		fmt.Println(strings.Join(names, " < "))
	case ":methods":
		mod, ok := shellModule(machine, args)
		if !ok {
			break
		}
		printSend(machine, mod, "instance_methods")
	case ":constants":
		mod := machine.ObjectClass
		if len(args) > 0 {
			var ok bool
			if mod, ok = shellModule(machine, args); !ok {
				break
			}
		}
		fmt.Println(strings.Join(machine.Constants(mod, false), " "))
	case ":send":
		if len(args) == 0 {
			fmt.Println("usage: :send Const.method [args...]")
			break
		}
		var vals []vm.Value
		for _, a := range args[1:] {
			v, err := unit.Eval(machine, a)
			if err != nil {
				fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
				return true
			}
			vals = append(vals, v)
		}
		v, err := unit.Invoke(machine, args[0], vals...)
		if err != nil {
			fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
			break
		}
		fmt.Printf("=> %s\n", machine.Inspect(v))
	case ":require":
		for _, p := range args {
			loaded, err := machine.Require(p)
			if err != nil {
				fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
				break
			}
			fmt.Printf("%s: %v\n", p, loaded)
		}
	case ":load":
		for _, p := range args {
			if err := machine.Load(p); err != nil {
				fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
				break
			}
		}
	case ":units":
		for _, p := range machine.Units() {
			fmt.Println(p)
		}
	case ":gc":
		stats := machine.CollectGarbage()
		fmt.Printf("%d live, %d swept, %d weak refs cleared in %s\n",
			stats.Live, stats.Swept, stats.WeakCleared, stats.SweepDuration)
	case ":quit", ":q":
		return false
	default:
		fmt.Printf("Unknown command: %s (try :help)\n", cmd)
	}
	return true
}

func shellModule(machine *vm.VM, args []string) (*vm.Module, bool) {
	if len(args) != 1 {
		fmt.Println("usage: expects one constant path")
		return nil, false
	}
	v, err := machine.ConstGetPath(vm.NewNesting(), args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
		return nil, false
	}
	mod, ok := v.(*vm.Module)
	if !ok {
		fmt.Printf("%s is not a class/module\n", args[0])
		return nil, false
	}
	return mod, true
}

func printSend(machine *vm.VM, recv vm.Value, name string) {
	v, err := machine.Send(recv, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
		return
	}
	fmt.Println(machine.Inspect(v))
}
