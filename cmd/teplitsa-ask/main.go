// Teplitsa-ask — one-shot запрос агенту теплицы.
//
// Минимальный способ спросить агента о состоянии теплицы без демона:
// один цикл принятия решений, ответ в stdout.
//
// Использование:
//
//	teplitsa-ask "Why is the vent fan running?"
//	teplitsa-ask -config /etc/teplitsa/config.yaml "Soil moisture trend?"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/agent"
	"github.com/ilkoid/teplitsa-ai/pkg/brain"
	"github.com/ilkoid/teplitsa-ai/pkg/utils"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	timeout := flag.Duration("timeout", 3*time.Minute, "overall query timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: teplitsa-ask [flags] \"query\"")
		fmt.Fprintln(os.Stderr, "Example: teplitsa-ask \"Why is the vent fan running?\"")
		os.Exit(1)
	}
	query := flag.Arg(0)

	if err := utils.InitLogger(); err != nil {
		log.Printf("Warning: failed to init logger: %v", err)
	}
	defer utils.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := agent.New(ctx, agent.Config{ConfigPath: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating agent: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	startTime := time.Now()
	result := client.AskDirect(ctx, query)

	fmt.Println(result.FinalText)

	fmt.Fprintf(os.Stderr, "\n[%s] rounds=%d tools=%d tokens=%d duration=%v\n",
		result.ExitReason,
		result.RoundsUsed,
		len(result.ToolCalls),
		result.TokensUsed.TotalTokens,
		time.Since(startTime).Round(time.Millisecond))

	if result.ExitReason == brain.ExitError {
		os.Exit(1)
	}
}
