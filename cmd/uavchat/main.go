// uavchat is the conversational analysis server for UAV flight logs: it
// ingests a parsed log into an in-memory tabular store, then answers
// questions over that store through an LLM agent that calls read-only SQL
// tools, self-validates its own numeric claims, and refuses unsafe input.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/uavlogviewer/chatbot/pkg/api"
	"github.com/uavlogviewer/chatbot/pkg/cleanup"
	"github.com/uavlogviewer/chatbot/pkg/config"
	"github.com/uavlogviewer/chatbot/pkg/controller"
	"github.com/uavlogviewer/chatbot/pkg/docindex"
	"github.com/uavlogviewer/chatbot/pkg/llm"
	"github.com/uavlogviewer/chatbot/pkg/safety"
	"github.com/uavlogviewer/chatbot/pkg/session"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

const docRefreshInterval = 6 * time.Hour

func main() {
	envFile := flag.String("env-file", ".env", "Path to a .env file to load before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no .env file loaded from %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		ChatModel:   cfg.LLMChatModel,
		ParserModel: cfg.LLMParserModel,
		EmbedModel:  cfg.LLMEmbedModel,
	})
	defer llmClient.Close()

	docIndex := docindex.New(docindex.Config{
		SourceURLs: cfg.DocSourceURLs,
		CacheDir:   cfg.CacheDir,
	}, llmClient)
	if err := docIndex.Refresh(ctx); err != nil {
		log.Fatalf("failed to initialize doc index: %v", err)
	}
	log.Printf("doc index ready: %+v", docIndex.Status())

	registry := session.NewRegistry(cfg.SessionTTL)
	registry.StartSweeper(ctx)

	cleanupService := cleanup.NewService(docRefreshInterval, docIndex)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	gate := safety.New(llmClient)
	ctrl := controller.New(gate, llmClient, docIndex, validator.New())

	server := api.NewServer(registry, ctrl, docIndex)

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
