// Package cli provides shared CLI utilities for kbrelay and kbrelayd.
package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	helpJSONFlag = "help-json"

	// envAnnotation marks the environment variable a flag falls back to.
	envAnnotation = "kbrelay_env"
)

// FlagSchema describes one flag of a command in --help-json output.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Env         string `json:"env,omitempty"`
	Required    bool   `json:"required"`
	Inherited   bool   `json:"inherited,omitempty"`
}

// CommandSchema describes a command and the commands below it.
type CommandSchema struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Use         string          `json:"use,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Example     string          `json:"example,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// GenerateSchema walks cmd and its visible subcommands.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Path:        cmd.CommandPath(),
		Use:         cmd.Use,
		Description: cmd.Short,
		Long:        cmd.Long,
		Example:     cmd.Example,
	}

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !skipFlag(f) {
			schema.Flags = append(schema.Flags, describeFlag(f, false))
		}
	})
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if !skipFlag(f) {
			schema.Flags = append(schema.Flags, describeFlag(f, true))
		}
	})

	for _, sub := range cmd.Commands() {
		if sub.Hidden || !sub.IsAvailableCommand() {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, GenerateSchema(sub))
	}
	return schema
}

func skipFlag(f *pflag.Flag) bool {
	return f.Name == helpJSONFlag || f.Name == "help" || f.Hidden
}

func describeFlag(f *pflag.Flag, inherited bool) FlagSchema {
	fs := FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Inherited:   inherited,
	}
	if env := f.Annotations[envAnnotation]; len(env) > 0 {
		fs.Env = env[0]
	}
	if req := f.Annotations[cobra.BashCompOneRequiredFlag]; len(req) > 0 {
		fs.Required = req[0] == "true"
	}
	return fs
}

// AnnotateEnv records that flag name on fs falls back to env when unset, so
// --help-json can report it.
func AnnotateEnv(fs *pflag.FlagSet, name, env string) {
	_ = fs.SetAnnotation(name, envAnnotation, []string{env})
}

// AddHelpJSONFlag registers --help-json on root and every command below it.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Output command schema as JSON")
}

// HandleHelpJSON writes the schema of the command args address to w when
// args contain --help-json, and reports whether it did. It runs before
// cobra parses args so required flags and positional checks do not get in
// the way.
func HandleHelpJSON(root *cobra.Command, args []string, w io.Writer) (bool, error) {
	path, ok := helpJSONPath(root, args)
	if !ok {
		return false, nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(GenerateSchema(findTargetCommand(root, path)))
}

// helpJSONPath returns the command words that precede --help-json, with
// flags and their values removed.
func helpJSONPath(root *cobra.Command, args []string) ([]string, bool) {
	var words []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return nil, false
		case arg == "--"+helpJSONFlag || arg == "--"+helpJSONFlag+"=true":
			return words, true
		case strings.HasPrefix(arg, "-"):
			if takesValue(root, arg) {
				i++
			}
		default:
			words = append(words, arg)
		}
	}
	return nil, false
}

// takesValue reports whether a flag written without "=" consumes the next
// argument. Flags are looked up across the whole tree since the target
// command is not known yet.
func takesValue(root *cobra.Command, arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}

	var f *pflag.Flag
	name := strings.TrimLeft(arg, "-")
	lookup := func(c *cobra.Command) {
		if f != nil {
			return
		}
		if strings.HasPrefix(arg, "--") {
			f = c.Flags().Lookup(name)
			if f == nil {
				f = c.PersistentFlags().Lookup(name)
			}
		} else if len(name) == 1 {
			f = c.Flags().ShorthandLookup(name)
			if f == nil {
				f = c.PersistentFlags().ShorthandLookup(name)
			}
		}
	}
	walkCommands(root, lookup)

	return f != nil && f.NoOptDefVal == ""
}

func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

func findTargetCommand(cmd *cobra.Command, words []string) *cobra.Command {
	for _, word := range words {
		next := cmd
		for _, sub := range cmd.Commands() {
			if sub.Name() == word || sub.HasAlias(word) {
				next = sub
				break
			}
		}
		if next == cmd {
			// Positional argument; the command path ends here.
			return cmd
		}
		cmd = next
	}
	return cmd
}
