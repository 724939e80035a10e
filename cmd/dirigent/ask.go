package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"dirigent/cmd/dirigent/console"
	"dirigent/internal/router"

	"github.com/spf13/cobra"
)

// askCmd runs a single turn and prints the answer
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Long: `Runs one turn against the model with the full command catalog and
prints the final answer. The console session history applies, so
consecutive asks share context.

Override lines work here too:

  dirigent ask "model: llama3
  what changed in the build today"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// consoleCmd starts the interactive console explicitly
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive console",
	RunE:  runConsole,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	answer, err := comps.router.Turn(ctx, router.Request{
		Session:  "console",
		UserName: currentUserName(),
		Content:  strings.Join(args, " "),
	})
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	return console.Run(ctx, comps.router, currentUserName())
}
