package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"adaptive-meal-planner/internal/app"
	"adaptive-meal-planner/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	switch os.Args[1] {
	case "plan":
		planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
		profilePath := planCmd.String("profile", "profile.json", "Path to the profile JSON file")
		planCmd.Parse(os.Args[2:])

		if err := application.GeneratePlan(ctx, *profilePath, os.Stdout); err != nil {
			log.Fatalf("Plan generation failed: %v", err)
		}
	case "simulate":
		simCmd := flag.NewFlagSet("simulate", flag.ExitOnError)
		profilePath := simCmd.String("profile", "profile.json", "Path to the profile JSON file")
		logsPath := simCmd.String("logs", "logs.json", "Path to a JSON array of daily logs")
		simCmd.Parse(os.Args[2:])

		if err := application.Simulate(ctx, *profilePath, *logsPath, os.Stdout); err != nil {
			log.Fatalf("Simulation failed: %v", err)
		}
	case "metrics":
		metricsCmd := flag.NewFlagSet("metrics", flag.ExitOnError)
		days := metricsCmd.Int("days", 7, "Report the last N days")
		metricsCmd.Parse(os.Args[2:])

		if err := application.PrintMetrics(ctx, *days, os.Stdout); err != nil {
			log.Fatalf("Failed to read metrics: %v", err)
		}
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := application.CleanupMetrics(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: meal-coach <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  plan               Generate a 7-day plan from a profile file")
	fmt.Println("  simulate           Generate a plan, then replay daily logs against it")
	fmt.Println("  metrics            Show token usage per day and per agent")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
