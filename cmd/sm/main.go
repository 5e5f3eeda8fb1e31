// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// sm is a command-line client for a running smd instance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fleetctl/sm/internal/pane"
	"github.com/fleetctl/sm/pkg/client"
)

const cliVersion = "0.1.0"

var (
	apiURL     = "http://127.0.0.1:8420"
	jsonOutput = false

	apiClient *client.Client
)

// Exit codes per spec.md §6: 0 success, 1 delivery/server failure, 2
// feature unavailable.
const (
	exitOK                 = 0
	exitFailure            = 1
	exitFeatureUnavailable = 2
)

func main() {
	if env := os.Getenv("SM_API_URL"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	apiClient = client.New(apiURL)

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(exitFailure)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var code int
	switch cmd {
	case "send":
		code = cmdSend(args)
	case "clear":
		code = cmdClear(args)
	case "dispatch":
		code = cmdDispatch(args)
	case "status":
		code = cmdStatus(args)
	case "version", "-version", "-v":
		fmt.Printf("sm %s\n", cliVersion)
		code = exitOK
	case "help", "-help", "-h":
		printUsage()
		code = exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		code = exitFailure
	}

	os.Exit(code)
}

func printUsage() {
	fmt.Println(`sm - control a running smd instance

Usage:
  sm [-json] <command> [arguments]

Global Flags:
  -json          Output in JSON format

Environment:
  SM_API_URL               Base URL of the daemon (default: http://127.0.0.1:8420)
  CLAUDE_SESSION_MANAGER_ID Identifies the calling session (used by dispatch)

Commands:
  send <session-id> <text> [-bypass-queue]
                           Deliver text to a session; reports DELIVERED, QUEUED, or FAILED

  clear <session-id>       Fence a pending stop notification and clear the pane's
                           context, always attempting the multiplexer clear even if
                           the daemon is unreachable for the cache-invalidation call

  dispatch [session-id]    Push the session's parent-wake digest now instead of
                           waiting for the next poll interval. Defaults to
                           CLAUDE_SESSION_MANAGER_ID when session-id is omitted

  status [session-id]      Show one session, or every session plus daemon health

  version                  Show the CLI version
  help                     Show this help`)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func cmdSend(args []string) int {
	bypassQueue := false
	var positional []string
	for _, a := range args {
		if a == "-bypass-queue" {
			bypassQueue = true
		} else {
			positional = append(positional, a)
		}
	}
	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "usage: sm send <session-id> <text> [-bypass-queue]")
		return exitFailure
	}
	id, text := positional[0], strings.Join(positional[1:], " ")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := apiClient.Sessions.Send(ctx, id, text, bypassQueue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		return exitFailure
	}

	if jsonOutput {
		printJSON(result)
	} else {
		fmt.Println(result.Result)
	}

	if result.Result == "FAILED" {
		return exitFailure
	}
	return exitOK
}

func cmdClear(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: sm clear <session-id>")
		return exitFailure
	}
	id := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ordering rule (spec.md 4.5): fence the stop notification before
	// touching the pane, so a stop hook firing mid-clear is absorbed by
	// the skip counter rather than mis-routed.
	invalidated := true
	if _, err := apiClient.Sessions.InvalidateCache(ctx, id, true); err != nil {
		fmt.Fprintf(os.Stderr, "cache invalidation unreachable, clearing pane anyway: %v\n", err)
		invalidated = false
	}

	paneName := id
	if sess, err := apiClient.Sessions.Get(ctx, id); err == nil {
		paneName = sess.PaneName
	} else {
		fmt.Fprintf(os.Stderr, "session lookup failed, using %q as the pane name: %v\n", id, err)
	}

	if err := clearPane(ctx, paneName); err != nil {
		fmt.Fprintf(os.Stderr, "clear failed: %v\n", err)
		return exitFailure
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"status": "cleared", "cache_invalidated": invalidated})
	} else {
		fmt.Println("cleared")
	}
	return exitOK
}

func clearPane(ctx context.Context, paneName string) error {
	ctl := pane.NewTmuxController()
	if err := ctl.SendKey(ctx, paneName, "Escape"); err != nil {
		return fmt.Errorf("send Escape: %w", err)
	}
	if err := ctl.SendText(ctx, paneName, "/clear"); err != nil {
		return fmt.Errorf("send /clear: %w", err)
	}
	if err := ctl.SendKey(ctx, paneName, "Enter"); err != nil {
		return fmt.Errorf("send Enter: %w", err)
	}
	return nil
}

func cmdDispatch(args []string) int {
	id := os.Getenv("CLAUDE_SESSION_MANAGER_ID")
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "usage: sm dispatch [session-id] (or set CLAUDE_SESSION_MANAGER_ID)")
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiClient.Sessions.Dispatch(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
		return exitFailure
	}

	if jsonOutput {
		printJSON(map[string]string{"status": "dispatched"})
	} else {
		fmt.Println("dispatched")
	}
	return exitOK
}

func cmdStatus(args []string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(args) > 0 {
		sess, err := apiClient.Sessions.Get(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
			return exitFailure
		}
		if jsonOutput {
			printJSON(sess)
			return exitOK
		}
		fmt.Printf("%-36s %-12s %-10s %s\n", sess.ID, sess.Status, sess.Provider, sess.FriendlyName)
		return exitOK
	}

	sessions, err := apiClient.Sessions.List(ctx, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
		return exitFailure
	}
	report, healthErr := apiClient.Health.Detailed(ctx)

	if jsonOutput {
		printJSON(map[string]interface{}{"sessions": sessions, "health": report})
		return exitOK
	}

	fmt.Printf("%-36s %-20s %-10s %s\n", "SESSION", "STATUS", "PROVIDER", "TASK")
	fmt.Println(strings.Repeat("-", 90))
	for _, s := range sessions {
		task := s.CurrentTask
		if task == "" {
			task = "-"
		}
		fmt.Printf("%-36s %-20s %-10s %s\n", s.ID, s.Status, s.Provider, task)
	}
	fmt.Println()
	if healthErr != nil {
		fmt.Printf("daemon health: unreachable (%v)\n", healthErr)
		return exitFailure
	}
	fmt.Printf("daemon health: %s (%d/%d sessions active)\n",
		report.Status, report.Resources.ActiveSessions, report.Resources.TotalSessions)
	return exitOK
}
