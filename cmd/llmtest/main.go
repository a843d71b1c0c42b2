package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wolfman30/salesbot/cmd/mainconfig"
	"github.com/wolfman30/salesbot/internal/advice"
	appconfig "github.com/wolfman30/salesbot/internal/config"
	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/pkg/logging"
)

// Usage: llmtest [bedrock | openai | gemini]
//
// llmtest sends a canned appointment history through the configured advice
// pipeline and prints the result. Useful for checking provider credentials.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	if len(os.Args) >= 2 {
		cfg.LLMProvider = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}
	logger := logging.New("debug")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AdviceTimeout)
	defer cancel()

	client, closeClient, err := mainconfig.NewLLMClient(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("❌ Failed to create %s client: %v\n", cfg.LLMProvider, err)
		os.Exit(1)
	}
	defer closeClient()

	generator := advice.NewGenerator(client, advice.Config{
		MaxTokens: int32(cfg.AdviceMaxTokens),
		Logger:    logger,
	})

	history := []records.Appointment{
		{Date: "2025/11/17", Time: "14:30", Customer: "Acme", Detail: "Second meeting. Discussed pricing; they asked for a volume discount."},
		{Date: "2025/11/03", Time: "10:00", Customer: "Acme", Detail: "Intro call with the purchasing manager. Interested in the annual plan."},
	}

	fmt.Printf("Advice provider test (%s)\n\n", cfg.LLMProvider)
	start := time.Now()
	text := generator.GenerateAdvice(ctx, history)
	elapsed := time.Since(start).Round(time.Millisecond)
	if text == advice.ApologyMessage {
		fmt.Printf("❌ Advice generation failed after %v (see logs)\n", elapsed)
		os.Exit(1)
	}
	fmt.Printf("✅ Response (%v):\n%s\n", elapsed, text)
}
