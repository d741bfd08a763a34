package services

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"brokerage-backoffice-api/models"
)

const sampleBase = "CPF;NB;NOME;CONTRATO;BANCO EMPRESTIMO\n" +
	"123.456.789-09;100;MARIA;C1;341\n" +
	"123.456.789-09;100;MARIA;C1;341\n" +
	";100;SEM DOCUMENTO;;\n" +
	"222.222.222-22;;SEM BENEFICIO;;\n" +
	"33333333333;300;ANA;C9;237\n"

func TestRunDryRunTallies(t *testing.T) {
	path := writeTempFile(t, "base.csv", sampleBase)

	svc := NewBaseImportJobService(nil)
	result, run, err := svc.Run(context.Background(), &BaseImportInput{
		FilePath:  path,
		Initiator: "tester",
		DryRun:    true,
		RecordRun: false,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run != nil {
		t.Errorf("run record created on dry run: %+v", run)
	}

	if result.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", result.TotalRows)
	}
	if result.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2 unique clients", result.SuccessCount)
	}
	if result.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", result.ErrorCount)
	}
	if result.DuplicateCount != 1 {
		t.Errorf("DuplicateCount = %d, want 1", result.DuplicateCount)
	}
	if result.ContractsDetected != 2 {
		t.Errorf("ContractsDetected = %d, want 2", result.ContractsDetected)
	}
	if result.ContractsInserted != 0 {
		t.Errorf("ContractsInserted = %d on dry run", result.ContractsInserted)
	}

	if len(result.Errors) != 2 {
		t.Fatalf("Errors = %+v", result.Errors)
	}
	if result.Errors[0].Row != 4 || result.Errors[0].Message != "invalid or missing identifier" {
		t.Errorf("Errors[0] = %+v", result.Errors[0])
	}
	if result.Errors[1].Row != 5 || result.Errors[1].Message != "missing reference number" {
		t.Errorf("Errors[1] = %+v", result.Errors[1])
	}
}

func TestRunErrorDetailsAreCapped(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("CPF;NB\n")
	for i := 0; i < 150; i++ {
		sb.WriteString(";100\n") // every row misses its identifier
	}
	path := writeTempFile(t, "base.csv", sb.String())

	svc := NewBaseImportJobService(nil)
	result, _, err := svc.Run(context.Background(), &BaseImportInput{
		FilePath: path,
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ErrorCount != 150 {
		t.Errorf("ErrorCount = %d, want the exact total", result.ErrorCount)
	}
	if len(result.Errors) != maxErrorDetails {
		t.Errorf("captured details = %d, want %d", len(result.Errors), maxErrorDetails)
	}
}

func TestRunRemovesFileWhenRequested(t *testing.T) {
	kept := writeTempFile(t, "kept.csv", sampleBase)
	removed := writeTempFile(t, "removed.csv", sampleBase)

	svc := NewBaseImportJobService(nil)
	if _, _, err := svc.Run(context.Background(), &BaseImportInput{
		FilePath: kept,
		DryRun:   true,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("caller-owned file removed: %v", err)
	}

	if _, _, err := svc.Run(context.Background(), &BaseImportInput{
		FilePath:   removed,
		DryRun:     true,
		RemoveFile: true,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(removed); !os.IsNotExist(err) {
		t.Errorf("uploaded file not cleaned up, stat err = %v", err)
	}
}

func TestRunRefusesBeforeAnyWork(t *testing.T) {
	svc := NewBaseImportJobService(nil)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", "does-not-exist.csv"},
		{"empty file", writeTempFile(t, "empty.csv", "")},
		{"unsupported type", writeTempFile(t, "base.pdf", "x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, run, err := svc.Run(context.Background(), &BaseImportInput{
				FilePath:  tt.path,
				RecordRun: true,
			})
			if err == nil {
				t.Fatal("expected refusal")
			}
			if result != nil || run != nil {
				t.Errorf("refusal produced result=%v run=%v", result, run)
			}
		})
	}
}

func TestRunCancelledContextFinishesAsCancelled(t *testing.T) {
	path := writeTempFile(t, "base.csv", sampleBase)

	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO `import_runs`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO `import_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `import_runs`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `import_logs`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery("SELECT .* FROM `import_runs` WHERE id = ").
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_name", "status"}).
			AddRow(7, "base.csv", models.ImportRunStatusCancelled))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // observed at the first chunk boundary

	svc := NewBaseImportJobService(gdb)
	result, run, err := svc.Run(ctx, &BaseImportInput{
		FilePath:  path,
		Initiator: "tester",
		RecordRun: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run == nil || run.Status != models.ImportRunStatusCancelled {
		t.Fatalf("run = %+v, want cancelled", run)
	}
	if result.SuccessCount != 0 || result.ContractsInserted != 0 {
		t.Errorf("writes happened on a cancelled run: %+v", result)
	}

	snap, ok := Progress.Get(7)
	if !ok || !snap.Terminal || snap.Phase != PhaseCancelled {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
