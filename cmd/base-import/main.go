// Command base-import loads a client base file (CSV or XLSX) into the
// clients and contracts tables from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"brokerage-backoffice-api/config"
	"brokerage-backoffice-api/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		filePath  string
		profile   string
		initiator string
		notify    string
		dryRun    bool
	)

	flag.StringVar(&filePath, "file", "", "path to the CSV or XLSX file to import (required)")
	flag.StringVar(&profile, "profile", "", "pacing profile: conservative, balanced or fast (default: auto)")
	flag.StringVar(&initiator, "initiator", "cli", "initiator label stored in the run record")
	flag.StringVar(&notify, "notify", "", "email address for the completion notification (optional)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing to the database")
	flag.Parse()

	if filePath == "" {
		log.Fatal("-file is required")
	}

	if !dryRun {
		config.InitDB()
	}

	job := services.NewBaseImportJobService(nil)
	result, run, err := job.Run(context.Background(), &services.BaseImportInput{
		FilePath:    filePath,
		FileName:    filePath,
		Initiator:   initiator,
		NotifyEmail: notify,
		Profile:     profile,
		DryRun:      dryRun,
		RecordRun:   !dryRun,
	})
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	if run != nil {
		fmt.Printf("Run %d finished with status %s\n", run.ID, run.Status)
	}
	fmt.Printf("Rows read: %d, clients written: %d, duplicates: %d\n",
		result.TotalRows, result.SuccessCount, result.DuplicateCount)
	fmt.Printf("Contracts detected: %d, inserted: %d\n",
		result.ContractsDetected, result.ContractsInserted)
	fmt.Printf("Errors: %d\n", result.ErrorCount)
	for _, detail := range result.Errors {
		fmt.Printf("  row %d: %s\n", detail.Row, detail.Message)
	}

	if dryRun {
		fmt.Println("Dry run complete. No database changes were made.")
	}

	if result.ErrorCount > 0 {
		os.Exit(2)
	}
}
