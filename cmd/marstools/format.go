package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// formatObjectsText formats CLIObject results as aligned columns.
func formatObjectsText(w io.Writer, objs []CLIObject) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPARENT\tSELECTED")
	for _, o := range objs {
		parent := o.Parent
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", o.ID, o.Name, o.Type, parent, o.Selected)
	}
	tw.Flush()
}

// formatObjectText formats a single object with its properties.
func formatObjectText(w io.Writer, o CLIObject) {
	formatObjectsText(w, []CLIObject{o})
	if len(o.Properties) == 0 {
		return
	}
	keys := make([]string, 0, len(o.Properties))
	for k := range o.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Properties:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, o.Properties[k])
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIObject:
		formatObjectsText(w, v)
	case CLIObject:
		formatObjectText(w, v)
	case CLIImport:
		if v.Unchanged {
			fmt.Fprintf(w, "%s unchanged, nothing imported\n", v.Path)
		} else {
			fmt.Fprintf(w, "Imported %d objects from %s\n", v.Objects, v.Path)
		}
	case CLIExport:
		fmt.Fprintf(w, "Exported %d objects to %s\n", v.Objects, v.Path)
	case CLICount:
		fmt.Fprintf(w, "%s: %d objects\n", result.Command, v.Count)
	case CLIScript:
		fmt.Fprintf(w, "Ran %s\n", v.Name)
	case []CLIScript:
		for _, s := range v {
			fmt.Fprintln(w, s.Name)
		}
	case nil:
		// No output for nil results (e.g., object lookup with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult marshals a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
