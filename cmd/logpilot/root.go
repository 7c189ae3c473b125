package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/agent"
	"github.com/ashutoshrp06/logpilot/internal/config"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/ashutoshrp06/logpilot/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath  string
	verbose     bool
	interactive bool
	trackFlag   string
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

var rootCmd = &cobra.Command{
	Use:   "logpilot [query]",
	Short: "Conversational log analysis assistant",
	Long: `
██╗      ██████╗  ██████╗ ██████╗ ██╗██╗      ██████╗ ████████╗
██║     ██╔═══██╗██╔════╝ ██╔══██╗██║██║     ██╔═══██╗╚══██╔══╝
██║     ██║   ██║██║  ███╗██████╔╝██║██║     ██║   ██║   ██║
██║     ██║   ██║██║   ██║██╔═══╝ ██║██║     ██║   ██║   ██║
███████╗╚██████╔╝╚██████╔╝██║     ██║███████╗╚██████╔╝   ██║
╚══════╝ ╚═════╝  ╚═════╝ ╚═╝     ╚═╝╚══════╝ ╚═════╝    ╚═╝

  Ask questions about IBM MQ, Redis and ACE logs in plain language.

Usage:
  logpilot "show the latest mq errors"   Run a one-shot query
  logpilot --it                          Start the interactive UI
  logpilot chat                          Line-oriented chat
  logpilot tools                         List available tools
  logpilot serve                         Expose the log tools over MCP`,

	Run: func(cmd *cobra.Command, args []string) {
		if interactive {
			runInteractive()
			return
		}
		if len(args) > 0 {
			runOneShot(args)
			return
		}
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&interactive, "it", false, "Start interactive mode")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&trackFlag, "track", "", "Force a track (queue, cache, default) instead of keyword routing")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(rcaCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// initApp builds the app and checks model connectivity.
func initApp(ctx context.Context, observer func(types.AgentEvent)) *app {
	a, err := buildApp(ctx, observer)
	if err != nil {
		printError("Failed to initialize", err)
		os.Exit(1)
	}

	fmt.Print(warnStyle.Render("Connecting to model... "))
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.orch.Ping(pingCtx); err != nil {
		fmt.Println(errorStyle.Render("✗"))
		fmt.Println()
		printConnectionHelp(a.cfg, err)
		a.Close()
		os.Exit(1)
	}
	fmt.Println(successStyle.Render("✓"))
	fmt.Printf("Using %s model: %s\n", a.orch.ProviderName(), a.cfg.LLM.Model)

	return a
}

// applyTrack pins conv to --track when it is set.
func applyTrack(conv *agent.Conversation) error {
	if trackFlag == "" {
		return nil
	}
	track, err := types.ParseTrack(trackFlag)
	if err != nil {
		return err
	}
	conv.ForceTrack(track)
	return nil
}

func runOneShot(args []string) {
	query := strings.Join(args, " ")

	ctx, stop := signalContext()
	defer stop()

	a := initApp(ctx, printEvent)
	defer a.Close()

	conv := a.conversation()
	if err := applyTrack(conv); err != nil {
		printError("Invalid --track", err)
		return
	}

	fmt.Printf("\n%s %s\n\n", headerStyle.Render("Query:"), query)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Agent.TimeoutSeconds)*time.Second)
	defer cancel()

	res, err := conv.Ask(runCtx, query)
	if err != nil {
		printError("Query failed", err)
		return
	}
	printAnswer(res)
}

func runInteractive() {
	ctx, stop := signalContext()
	defer stop()

	var prog *tea.Program
	a := initApp(ctx, func(ev types.AgentEvent) {
		// Done and Error arrive through the query command.
		if prog != nil && ev.State != types.StateDone && ev.State != types.StateError {
			prog.Send(ev)
		}
	})
	defer a.Close()

	conv := a.conversation()
	if err := applyTrack(conv); err != nil {
		printError("Invalid --track", err)
		return
	}

	model := ui.NewModel(conv.ProcessQueryCmd,
		ui.WithTools(a.orch.Tools()),
		ui.WithClear(conv.ClearHistory),
	)
	prog = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		printError("Error running UI", err)
		os.Exit(1)
	}
}

// printEvent reports progress of a one-shot run.
func printEvent(ev types.AgentEvent) {
	switch ev.State {
	case types.StateStepping:
		if ev.Hop == 1 {
			fmt.Println(infoStyle.Render(fmt.Sprintf("Track: %s", ev.Track)))
		}
	case types.StateToolExec:
		if ev.ToolResults == nil {
			for _, call := range ev.ToolCalls {
				fmt.Println(warnStyle.Render("  ◆ " + call.Name + " " + formatArgs(call.Args)))
			}
			return
		}
		for _, r := range ev.ToolResults {
			fmt.Println(dimStyle.Render("    " + truncateContent(firstLine(r.Content), 120)))
		}
	}
}

func printAnswer(res *agent.Result) {
	fmt.Println()
	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println(res.Answer)
	fmt.Println()

	meta := fmt.Sprintf("track=%s hops=%d", res.Track, res.Hops)
	if res.Escalated {
		meta += " escalated=true"
	}
	fmt.Println(dimStyle.Render(meta))
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// createLogger logs to stderr; stdout stays free for answers and MCP.
func createLogger() *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func printError(msg string, err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %s: %v", msg, err)))
}

func printConnectionHelp(cfg *config.Config, err error) {
	cmdStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))

	fmt.Println(errorStyle.Render(fmt.Sprintf("Could not reach %s model: %v", cfg.LLM.Provider, err)))
	fmt.Println()
	if strings.EqualFold(cfg.LLM.Provider, "ollama") {
		fmt.Println(dimStyle.Render("Make sure Ollama is running:"))
		fmt.Println(cmdStyle.Render("  ollama serve"))
		fmt.Println(cmdStyle.Render("  ollama pull " + cfg.LLM.Model))
		fmt.Println()
	}
	fmt.Println(dimStyle.Render("Or configure a different endpoint:"))
	fmt.Println(cmdStyle.Render("  logpilot config --init, then edit llm.endpoint"))
}

func truncateContent(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
