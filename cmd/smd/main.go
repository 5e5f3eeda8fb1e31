// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fleetctl/sm/internal/app"
	"github.com/fleetctl/sm/internal/config"
)

var appVersion = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("smd %s\n", appVersion)
		os.Exit(0)
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    appVersion,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles "smd init".
func runInit() error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: smd init [options]

Create a new sm.hjson configuration file in the current directory.

Options:
  -h, -help    Show this help message`)
		return nil
	}

	configFile := "sm.hjson"
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("sm Configuration Setup")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("This will create an sm.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	defaultName := filepath.Base(cwd)

	projectName := prompt(reader, "Project name", defaultName)
	portStr := prompt(reader, "Server port", "8765")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 8765
	}

	logFormat := prompt(reader, "Log format (json/text)", "json")
	if logFormat != "json" && logFormat != "text" {
		logFormat = "json"
	}

	configContent := generateConfig(projectName, port, logFormat)
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit sm.hjson as needed")
	fmt.Println("  2. Run: smd")
	fmt.Println("  3. Point the CLI at it: export SM_API_URL=http://127.0.0.1:" + strconv.Itoa(port))
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(projectName string, port int, logFormat string) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // sm Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  // ---------------------------------------------------------------------------
  // Project Metadata
  // ---------------------------------------------------------------------------
  project: {
    name: "` + escapeHJSONValue(projectName) + `"
  }

  // ---------------------------------------------------------------------------
  // HTTP Server
  // ---------------------------------------------------------------------------
  server: {
    host: "127.0.0.1"
    port: ` + strconv.Itoa(port) + `
  }

  // ---------------------------------------------------------------------------
  // Persisted session registry
  // ---------------------------------------------------------------------------
  state: {
    path: ".sm/sessions.json"
  }

  // ---------------------------------------------------------------------------
  // Advisory workspace lock (path relative to the git root)
  // ---------------------------------------------------------------------------
  lock: {
    file_name: ".claude/workspace.lock"
    stale_after: "30m"
  }

  // ---------------------------------------------------------------------------
  // Output monitor cadence
  // ---------------------------------------------------------------------------
  monitor: {
    capture_interval: "1s"
    idle_cooldown: "300s"
    permission_debounce: "30s"
    stable_window: "2s"
  }

  // ---------------------------------------------------------------------------
  // Message queue
  // ---------------------------------------------------------------------------
  message_queue: {
    db_path: ".sm/queue.db"
    worker_poll_interval: "5s"
    max_attempts: 5
    backoff_start: "1s"
    backoff_cap: "30s"
  }

  // ---------------------------------------------------------------------------
  // Parent wake scheduler
  // ---------------------------------------------------------------------------
  parent_wake: {
    poll_interval: "10s"
  }

  // ---------------------------------------------------------------------------
  // Subprocess timeouts
  // ---------------------------------------------------------------------------
  timeouts: {
    tmux_send_text: "2s"
    tmux_capture: "5s"
    git_command: "2s"
  }

  // ---------------------------------------------------------------------------
  // Daemon logging
  // ---------------------------------------------------------------------------
  logging: {
    level: "info"
    format: "` + logFormat + `"
  }

  // ---------------------------------------------------------------------------
  // Optional external notifier (leave empty to use log-only notifications)
  // ---------------------------------------------------------------------------
  notifier: {
    telegram: {
      bot_token: ""
      chat_id: ""
    }
  }
}
`)

	return sb.String()
}
