package main

import (
	"fmt"
	"os"

	"github.com/ashutoshrp06/logpilot/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	initConfig  bool
	forceInit   bool
	setProvider string
	setModel    string
	setEndpoint string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify configuration",
	Long: `View or modify logpilot configuration.

Configuration is read from --config, ./config.local.yaml, ./config.yaml or
~/.logpilot/config.yaml, in that order. LOGPILOT_* environment variables
override file values (for example LOGPILOT_LLM_MODEL).

Examples:
  logpilot config                            # Show effective config
  logpilot config --init                     # Write defaults to ~/.logpilot/config.yaml
  logpilot config --provider anthropic --model claude-sonnet-4-5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig()
	},
}

func init() {
	configCmd.Flags().BoolVar(&initConfig, "init", false, "Write a default config file")
	configCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file with --init")
	configCmd.Flags().StringVar(&setProvider, "provider", "", "Set llm.provider (openai, vllm, anthropic, ollama)")
	configCmd.Flags().StringVar(&setModel, "model", "", "Set llm.model")
	configCmd.Flags().StringVar(&setEndpoint, "endpoint", "", "Set llm.endpoint")
}

func runConfig() error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if initConfig {
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Wrote " + path))
		return nil
	}

	var (
		cfg    *config.Config
		source string
		err    error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
		source = configPath
	} else {
		cfg, source, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	modified := false
	if setProvider != "" {
		cfg.LLM.Provider = setProvider
		modified = true
	}
	if setModel != "" {
		cfg.LLM.Model = setModel
		modified = true
	}
	if setEndpoint != "" {
		cfg.LLM.Endpoint = setEndpoint
		modified = true
	}

	if modified {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if source == "" {
			source = path
		}
		if err := cfg.Save(source); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Configuration saved to " + source))
		fmt.Println()
	}

	return printConfig(cfg, source)
}

func printConfig(cfg *config.Config, source string) error {
	shown := *cfg
	shown.LLM.APIKey = redact(shown.LLM.APIKey)
	shown.Embedding.APIKey = redact(shown.Embedding.APIKey)
	shown.Qdrant.APIKey = redact(shown.Qdrant.APIKey)
	shown.Redis.Password = redact(shown.Redis.Password)

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Println(headerStyle.Render("logpilot Configuration"))
	if source == "" {
		source = "(defaults)"
	}
	fmt.Println(dimStyle.Render("Source: " + source))
	fmt.Println()
	fmt.Print(string(data))

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		fmt.Println(warnStyle.Render("Warning: " + err.Error()))
	}
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
