package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Line-oriented chat for terminals without full-screen support",
	Long: `Start a plain read-eval-print chat.

Commands:
  clear             forget the conversation
  track <name>      pin queue, cache or default; "track auto" restores routing
  exit              quit`,
	Run: func(cmd *cobra.Command, args []string) {
		runChat()
	},
}

func runChat() {
	ctx, stop := signalContext()
	defer stop()

	a := initApp(ctx, printEvent)
	defer a.Close()

	conv := a.conversation()
	if err := applyTrack(conv); err != nil {
		printError("Invalid --track", err)
		return
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("logpilot chat") + dimStyle.Render("  (type 'exit' to quit)"))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			fmt.Println("Goodbye!")
			return
		case strings.EqualFold(line, "clear"):
			conv.ClearHistory()
			fmt.Println(successStyle.Render("✓ Conversation cleared"))
			continue
		case strings.HasPrefix(strings.ToLower(line), "track "):
			setTrack(conv, strings.TrimSpace(line[len("track "):]))
			continue
		}

		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Agent.TimeoutSeconds)*time.Second)
		res, err := conv.Ask(runCtx, line)
		cancel()
		if err != nil {
			printError("Query failed", err)
			fmt.Println()
			continue
		}
		printAnswer(res)
		fmt.Println()
	}
}

type trackPinner interface {
	ForceTrack(types.Track)
	Unpin()
}

func setTrack(conv trackPinner, name string) {
	if strings.EqualFold(name, "auto") {
		conv.Unpin()
		fmt.Println(successStyle.Render("✓ Keyword routing restored"))
		return
	}
	track, err := types.ParseTrack(name)
	if err != nil {
		printError("Invalid track", err)
		return
	}
	conv.ForceTrack(track)
	fmt.Println(successStyle.Render("✓ Pinned to " + track.String() + " track"))
}
