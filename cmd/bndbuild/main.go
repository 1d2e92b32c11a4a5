package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cpctools/bnd/pkg/bndbuild"
	"github.com/cpctools/bnd/pkg/version"
	"github.com/spf13/cobra"
)

var (
	buildFile   string
	definitions []string
	watchEvery  time.Duration
	parallel    bool
	addDeps     []string
	addKind     string
	showVersion bool
)

// consoleObserver prints build progress to stdout/stderr, the direct
// equivalent of a terminal progress reporter wired to an Observer.
type consoleObserver struct {
	out *bufio.Writer
	err *bufio.Writer
}

func (c *consoleObserver) Notify(n bndbuild.Notification) {
	switch n.Kind {
	case bndbuild.EvStartRule:
		fmt.Fprintf(c.out, "[%d/%d] %s\n", n.RuleNum, n.RuleOf, n.Rule)
	case bndbuild.EvFailedRule:
		fmt.Fprintf(c.err, "FAILED: %s\n", n.Rule)
	case bndbuild.EvStartTask:
		fmt.Fprintf(c.out, "  $ %s\n", n.Task.String())
	case bndbuild.EvStdout, bndbuild.EvTaskStdout:
		fmt.Fprintln(c.out, n.Text)
	case bndbuild.EvStderr, bndbuild.EvTaskStderr:
		fmt.Fprintln(c.err, n.Text)
	}
	c.out.Flush()
	c.err.Flush()
}

func newConsoleObserver() *consoleObserver {
	return &consoleObserver{out: bufio.NewWriter(os.Stdout), err: bufio.NewWriter(os.Stderr)}
}

func parseDefinitions(raw []string) map[string]string {
	out := make(map[string]string, len(raw))
	for _, d := range raw {
		k, v, ok := strings.Cut(d, "=")
		if !ok {
			v = "1"
		}
		out[k] = v
	}
	return out
}

func loadBuilder() (*bndbuild.Builder, error) {
	path := buildFile
	if path == "" {
		path = "."
	}
	b, err := bndbuild.Load(path, parseDefinitions(definitions))
	if err != nil {
		return nil, err
	}
	b.Parallel = parallel
	b.AddObserver(newConsoleObserver())
	return b, nil
}

var rootCmd = &cobra.Command{
	Use:   "bndbuild [target]",
	Short: "bndbuild - a YAML build orchestrator for Amstrad CPC projects " + version.GetVersion(),
	Long: `bndbuild drives an Amstrad CPC project's build graph: a YAML rule
file names targets, their dependencies, and the shell-like tasks that
produce them (basm, dsk, sna, cp, rm, echo, extern, and recursive
bndbuild invocations), and bndbuild executes only the rules whose
targets are out of date relative to their dependencies.

Listing, showing, graphing, watching, init and add are subcommands, not
root flags.

EXAMPLES:
  bndbuild                       # build the default target
  bndbuild game.bin               # build a specific target
  bndbuild -D LEVEL=3 game.bin     # pass a template definition
  bndbuild list                   # list every declared target
  bndbuild show                   # print the resolved, templated YAML
  bndbuild dot > graph.dot         # render the dependency graph
  bndbuild watch game.bin          # rebuild on every change, polling
  bndbuild init                   # write a starter bndbuild.yml
  bndbuild add --tgt out.bin --dep in.asm -- basm -o out.bin in.asm`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetFullVersion())
			return nil
		}
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		target := ""
		if len(args) > 0 {
			target = args[0]
		} else if t, ok := b.DefaultTarget(); ok {
			target = t
		} else {
			return fmt.Errorf("no target given and the build file declares no default target")
		}
		return b.Execute(target)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every declared target",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		for _, r := range b.Rules {
			help := r.Help
			if help == "" {
				help = "(no help text)"
			}
			fmt.Printf("%s  -  %s\n", strings.Join(r.Targets, ", "), help)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved, templated build file as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		fmt.Print(b.String())
		return nil
	},
}

var dotCmd = &cobra.Command{
	Use:   "dot",
	Short: "Render the dependency graph as Graphviz dot source",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		fmt.Print(b.ToDot())
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [targets...]",
	Short: "Rebuild targets whenever their dependencies change",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		targets := args
		if len(targets) == 0 {
			t, ok := b.DefaultTarget()
			if !ok {
				return fmt.Errorf("no target given and the build file declares no default target")
			}
			targets = []string{t}
		}
		interval := watchEvery
		if interval <= 0 {
			interval = 500 * time.Millisecond
		}
		stop := make(chan struct{})
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		go func() {
			<-sigCh
			close(stop)
		}()
		return b.Watch(targets, interval, stop)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter bndbuild.yml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := buildFile
		if path == "" {
			path = "bndbuild.yml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		starter := `- tgt: game.bin
  dep: game.asm
  cmd:
    - basm -o game.bin game.asm
  help: assemble the main program
`
		return os.WriteFile(path, []byte(starter), 0o644)
	},
}

var directCmd = &cobra.Command{
	Use:   "direct -- <tool> <args...>",
	Short: "Run a single task directly, bypassing the rule graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		task, err := bndbuild.ParseTask(strings.Join(args, " "))
		if err != nil {
			return err
		}
		return b.RunDirect(task)
	},
}

var addTgt, addHelp string

var addCmd = &cobra.Command{
	Use:   "add -- <tool> <args...>",
	Short: "Append a rule to the build file and save it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := loadBuilder()
		if err != nil {
			return err
		}
		if addTgt == "" {
			return fmt.Errorf("--tgt is required")
		}
		cmdLine := strings.Join(args, " ")
		if err := b.AddDefaultRule([]string{addTgt}, addDeps, cmdLine); err != nil {
			return err
		}
		if len(b.Rules) > 0 {
			b.Rules[len(b.Rules)-1].Help = addHelp
		}
		path := buildFile
		if path == "" {
			path = "bndbuild.yml"
		}
		return b.Save(path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&buildFile, "file", "f", "", "build file or project directory (default: search the current directory)")
	rootCmd.PersistentFlags().StringArrayVarP(&definitions, "define", "D", nil, "template definition KEY=VALUE (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&parallel, "parallel", false, "run independent rules within a layer concurrently")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")

	watchCmd.Flags().DurationVar(&watchEvery, "interval", 500*time.Millisecond, "poll interval between up-to-date checks")

	addCmd.Flags().StringVar(&addTgt, "tgt", "", "the rule's target path")
	addCmd.Flags().StringArrayVar(&addDeps, "dep", nil, "a dependency path (repeatable)")
	addCmd.Flags().StringVar(&addHelp, "help-text", "", "help text shown by `bndbuild list`")

	rootCmd.AddCommand(listCmd, showCmd, dotCmd, watchCmd, initCmd, directCmd, addCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
