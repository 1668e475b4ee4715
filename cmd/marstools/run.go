package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var flagSet []string

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a Risor script against the stored scene",
	Long:  "Runs a script from the configured scripts source (the embedded set unless scripts.dir is set). Scripts see the scene through globals such as roots(), children(name) and select_objects(names, clear).",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	runCmd.Flags().StringArrayVar(&flagSet, "set", nil, "script global as key=value (repeatable)")
}

func runScript(cmd *cobra.Command, args []string) error {
	globals, err := parseGlobals(flagSet)
	if err != nil {
		return outputError(cmd, "run", err)
	}

	e, err := openEngine()
	if err != nil {
		return outputError(cmd, "run", err)
	}
	defer e.Close()

	if err := e.RunScript(cmd.Context(), args[0], globals); err != nil {
		return outputError(cmd, "run", err)
	}
	return outputResult(cmd, CLIResult{Command: "run", Results: CLIScript{Name: args[0]}})
}

// parseGlobals turns key=value pairs into script globals. Values that parse
// as integers, floats or booleans keep that type.
func parseGlobals(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	globals := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", p)
		}
		globals[key] = parseValue(value)
	}
	return globals, nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List the scripts available to run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return outputError(cmd, "scripts", err)
		}
		defer e.Close()

		names, err := e.Scripts()
		if err != nil {
			return outputError(cmd, "scripts", err)
		}
		results := make([]CLIScript, 0, len(names))
		for _, n := range names {
			results = append(results, CLIScript{Name: n})
		}
		total := len(results)
		return outputResult(cmd, CLIResult{Command: "scripts", Results: results, TotalCount: &total})
	},
}
