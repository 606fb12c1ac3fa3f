package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okafor/toolmux/internal/config"
	"github.com/okafor/toolmux/pkg/registry"
)

var (
	registerDisplayName    string
	registerCommand        string
	registerArgs           []string
	registerCapabilities   []string
	registerPromptPatterns []string
	registerInitTimeout    int
	registerCommandTimeout int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage the tool catalog",
	Long:  `List, register, and disable the external CLI tools toolmux can drive.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled tools",
	RunE:  runToolsList,
}

var toolsRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a tool at runtime",
	Long: `Register a new tool without editing the catalog file.
The registration is persisted and survives daemon restarts.`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsRegister,
}

var toolsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsDisable,
}

func init() {
	toolsRegisterCmd.Flags().StringVar(&registerDisplayName, "display-name", "", "human readable tool name")
	toolsRegisterCmd.Flags().StringVar(&registerCommand, "command", "", "binary to execute (required)")
	toolsRegisterCmd.Flags().StringSliceVar(&registerArgs, "args", nil, "default arguments")
	toolsRegisterCmd.Flags().StringSliceVar(&registerCapabilities, "capabilities", nil, "capability tags")
	toolsRegisterCmd.Flags().StringSliceVar(&registerPromptPatterns, "prompt-pattern", nil, "prompt patterns (presence makes the tool stateful)")
	toolsRegisterCmd.Flags().IntVar(&registerInitTimeout, "init-timeout", 0, "session init timeout in milliseconds")
	toolsRegisterCmd.Flags().IntVar(&registerCommandTimeout, "command-timeout", 0, "command timeout in milliseconds")
	toolsRegisterCmd.MarkFlagRequired("command")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsRegisterCmd)
	toolsCmd.AddCommand(toolsDisableCmd)
	rootCmd.AddCommand(toolsCmd)
}

// openRegistry loads the catalog and persisted registrations the same
// way the daemon does. Callers must Close the returned store.
func openRegistry() (*registry.Registry, *registry.SQLiteStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := registry.OpenSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tool store: %w", err)
	}

	reg := registry.New(cfg.CatalogPath, store)
	if err := reg.Load(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}
	return reg, store, nil
}

func runToolsList(cmd *cobra.Command, args []string) error {
	reg, store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	tools := reg.ListAll()
	if len(tools) == 0 {
		fmt.Println("No tools configured")
		return nil
	}

	fmt.Printf("%-16s %-24s %-9s %s\n", "NAME", "COMMAND", "MODE", "CAPABILITIES")
	for _, tool := range tools {
		mode := "stateless"
		if tool.Stateful() {
			mode = "stateful"
		}
		caps := make([]string, len(tool.Capabilities))
		for i, c := range tool.Capabilities {
			caps[i] = string(c)
		}
		command := strings.TrimSpace(tool.Command + " " + strings.Join(tool.Args, " "))
		fmt.Printf("%-16s %-24s %-9s %s\n", tool.Name, command, mode, strings.Join(caps, ","))
	}
	return nil
}

func runToolsRegister(cmd *cobra.Command, args []string) error {
	reg, store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	name := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = reg.RegisterTool(ctx, name, registerDisplayName, registerCommand, registerCapabilities, registerArgs, registry.StatefulConfig{
		PromptPatterns:   registerPromptPatterns,
		InitTimeoutMS:    registerInitTimeout,
		CommandTimeoutMS: registerCommandTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to register tool: %w", err)
	}

	fmt.Printf("Tool %s registered\n", name)
	return nil
}

func runToolsDisable(cmd *cobra.Command, args []string) error {
	reg, store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	name := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := reg.Disable(ctx, name); err != nil {
		return fmt.Errorf("failed to disable tool: %w", err)
	}

	fmt.Printf("Tool %s disabled\n", name)
	return nil
}
