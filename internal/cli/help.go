package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFA500")).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// StyledHelpPrinter creates a help printer with Lipgloss styling for the
// command titled title.
func StyledHelpPrinter(title, tagline string) kong.HelpPrinter {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		// Title and description
		sb.WriteString(helpTitleStyle.Render(title))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(tagline))
		sb.WriteString("\n")

		args := getArguments(ctx)

		// Usage
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(ctx.Model.Name + " [flags]")
		for _, arg := range args {
			sb.WriteString(" " + arg.name)
		}
		sb.WriteString("\n")

		if len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		flags := getFlags(ctx)
		if len(flags) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Flags:"))
			sb.WriteString("\n")
			for _, flag := range flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(flag.flags))
				if flag.help != "" {
					sb.WriteString("  ")
					sb.WriteString(flag.help)
				}
				if flag.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
				}
				if flag.env != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("($" + flag.env + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
	env        string
}

func getArguments(ctx *kong.Context) []argument {
	var args []argument
	for _, arg := range ctx.Model.Node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}
	return args
}

func getFlags(ctx *kong.Context) []flag {
	var flags []flag

	// Always include help flag
	flags = append(flags, flag{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	})

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		var flagStr string
		if f.Short != 0 {
			flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		} else {
			flagStr = fmt.Sprintf("--%s", f.Name)
		}

		if !f.IsBool() {
			placeholder := f.PlaceHolder
			if f.Enum != "" {
				placeholder = strings.ReplaceAll(f.Enum, ",", "|")
			}
			if placeholder != "" {
				flagStr += "=" + strings.ToUpper(placeholder)
			}
		}

		fl := flag{flags: flagStr, help: f.Help}
		if !f.IsBool() && f.Default != "" {
			fl.defaultVal = f.Default
		}
		if len(f.Envs) > 0 {
			fl.env = f.Envs[0]
		}
		flags = append(flags, fl)
	}

	return flags
}
