package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	Long: `List local log tools and the tools of every configured MCP server,
with the track each one is bound to.

Examples:
  logpilot tools           # List all tools
  logpilot tools --verbose # Show parameters`,
	Run: func(cmd *cobra.Command, args []string) {
		runTools()
	},
}

func runTools() {
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, nil)
	if err != nil {
		printError("Failed to initialize", err)
		os.Exit(1)
	}
	defer a.Close()

	bound := make(map[string]types.Track)
	for _, track := range []types.Track{types.TrackQueue, types.TrackCache, types.TrackDefault} {
		for _, name := range a.orch.TrackTools(track) {
			bound[name] = track
		}
	}

	toolStyle := warnStyle.Bold(true)

	fmt.Println(headerStyle.Render("Available Tools"))
	fmt.Println()

	for _, info := range a.orch.Tools() {
		track := "unbound"
		if t, ok := bound[info.Name]; ok {
			track = t.String()
		}
		fmt.Printf("  %s %s\n", toolStyle.Render("◆ "+info.Name), dimStyle.Render(fmt.Sprintf("[%s, %s track]", info.Owner, track)))
		fmt.Printf("    %s\n", dimStyle.Render(info.Description))

		if verbose {
			printSchema(info.Schema)
		}
		fmt.Println()
	}

	if !verbose {
		fmt.Println(dimStyle.Render("  Use --verbose for parameter details"))
	}
}

func printSchema(schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return
	}
	required := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("    Parameters:")
	for _, name := range names {
		suffix := ""
		if required[name] {
			suffix = " (required)"
		}
		fmt.Printf("      %s%s\n", infoStyle.Render(name), suffix)
		if p, ok := props[name].(map[string]any); ok {
			if desc, ok := p["description"].(string); ok && desc != "" {
				fmt.Printf("        %s\n", dimStyle.Render(desc))
			}
		}
	}
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

