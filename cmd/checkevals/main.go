// Command checkevals is an ops tool for inspecting the evaluations table:
// per-status counts, stuck processing records, and an optional sweep that
// fails records stuck past a deadline.
//
// Usage:
//
//	go run ./cmd/checkevals [--max-age=30] [--fail-stale]
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/examlens/examlens-api/database"
)

func main() {
	maxAge := flag.Int("max-age", 30, "age in minutes before a processing evaluation counts as stuck")
	failStale := flag.Bool("fail-stale", false, "transition stuck evaluations to failed")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	store, err := database.Start()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	counts, err := store.CountEvaluationsByStatus()
	if err != nil {
		log.Fatalf("Failed to count evaluations: %v", err)
	}

	fmt.Println("=== Evaluations by status ===")
	if len(counts) == 0 {
		fmt.Println("(no evaluations)")
	}
	for _, c := range counts {
		fmt.Printf("%-12s %d\n", c.Status, c.Count)
	}

	stuck, err := store.ListStuckEvaluations(*maxAge)
	if err != nil {
		log.Fatalf("Failed to list stuck evaluations: %v", err)
	}

	fmt.Printf("\n=== Processing for more than %d minutes ===\n", *maxAge)
	if len(stuck) == 0 {
		fmt.Println("(none)")
	}
	for _, e := range stuck {
		fmt.Printf("#%d  %s / %s  (%.0f min)\n", e.ID, e.Subject, e.GradeLevel, e.AgeMinutes)
	}

	if *failStale && len(stuck) > 0 {
		swept, err := store.FailStuckEvaluations(*maxAge, "evaluation timed out")
		if err != nil {
			log.Fatalf("Failed to sweep stuck evaluations: %v", err)
		}
		fmt.Printf("\nMarked %d evaluations as failed\n", swept)
	}
}
