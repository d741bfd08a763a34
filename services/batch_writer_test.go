package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"brokerage-backoffice-api/models"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return gdb, mock, func() { db.Close() }
}

func testWriter(db *gorm.DB, batchSize int) (*BatchWriter, *[]time.Duration) {
	w := NewBatchWriter(db, ImportProfile{
		Name:       "test",
		BatchSize:  batchSize,
		BatchDelay: 200 * time.Millisecond,
	})
	var sleeps []time.Duration
	w.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return w, &sleeps
}

func makeClients(cpfs ...string) []*models.Client {
	out := make([]*models.Client, len(cpfs))
	for i, cpf := range cpfs {
		out[i] = &models.Client{CPF: cpf, BenefitNumber: "1"}
	}
	return out
}

func TestWriteClientsBatchesAndPaces(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO `clients`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("INSERT INTO `clients`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(3, 1))

	w, sleeps := testWriter(gdb, 2)

	var checkpoints []int
	written, failed := w.WriteClients(context.Background(),
		makeClients("1", "2", "3"),
		func(done int) bool {
			checkpoints = append(checkpoints, done)
			return true
		})

	if written != 3 || failed != 0 {
		t.Errorf("written/failed = %d/%d, want 3/0", written, failed)
	}
	if len(checkpoints) != 2 || checkpoints[0] != 2 || checkpoints[1] != 3 {
		t.Errorf("checkpoints = %v", checkpoints)
	}
	// The delay applies between slices, not after the last one.
	if len(*sleeps) != 1 || (*sleeps)[0] != 200*time.Millisecond {
		t.Errorf("sleeps = %v", *sleeps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWriteClientsFailedBatchCountsAndContinues(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO `clients`").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectExec("INSERT INTO `clients`").
		WillReturnResult(sqlmock.NewResult(1, 2))

	w, _ := testWriter(gdb, 2)
	written, failed := w.WriteClients(context.Background(),
		makeClients("1", "2", "3", "4"), nil)

	if written != 2 || failed != 2 {
		t.Errorf("written/failed = %d/%d, want 2/2", written, failed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWriteClientsStopsWhenCallbackDeclines(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	// The in-flight slice completes, then the loop stops: one insert only.
	mock.ExpectExec("INSERT INTO `clients`").
		WillReturnResult(sqlmock.NewResult(1, 2))

	w, sleeps := testWriter(gdb, 2)
	written, failed := w.WriteClients(context.Background(),
		makeClients("1", "2", "3", "4"),
		func(done int) bool { return false })

	if written != 2 || failed != 0 {
		t.Errorf("written/failed = %d/%d, want 2/0", written, failed)
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept after stop: %v", *sleeps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWriteRetriedBatchRepeatsSameUpsert(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	// Anchored patterns: a retried batch must issue the exact same
	// natural-key upsert, never a plain insert that could duplicate rows.
	clientUpsert := "^INSERT INTO `clients` \\(.+\\) VALUES .+ ON DUPLICATE KEY UPDATE"
	contractUpsert := "^INSERT INTO `contracts` \\(.+\\) VALUES .+ ON DUPLICATE KEY UPDATE"

	mock.ExpectExec(clientUpsert).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(clientUpsert).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(contractUpsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(contractUpsert).WillReturnResult(sqlmock.NewResult(0, 1))

	clients := makeClients("11111111111", "22222222222")
	contracts := []*models.Contract{
		{CPF: "11111111111", ContractNumber: "C1", LenderCode: "341"},
	}
	ids := map[string]uint{"11111111111": 10, "22222222222": 20}

	w, _ := testWriter(gdb, 10)
	for pass := 0; pass < 2; pass++ {
		written, failed := w.WriteClients(context.Background(), clients, nil)
		if written != 2 || failed != 0 {
			t.Fatalf("pass %d clients written/failed = %d/%d", pass, written, failed)
		}
	}
	for pass := 0; pass < 2; pass++ {
		written, dropped, failed := w.WriteContracts(context.Background(), contracts, ids, nil)
		if written != 1 || dropped != 0 || failed != 0 {
			t.Fatalf("pass %d contracts written/dropped/failed = %d/%d/%d", pass, written, dropped, failed)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolveClientIDs(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	mock.ExpectQuery("SELECT client_id, cpf FROM `clients` WHERE cpf IN").
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "cpf"}).
			AddRow(10, "11111111111").
			AddRow(20, "22222222222"))

	w, _ := testWriter(gdb, 2)
	ids := w.ResolveClientIDs(context.Background(),
		[]string{"11111111111", "22222222222", "33333333333"})

	if len(ids) != 2 || ids["11111111111"] != 10 || ids["22222222222"] != 20 {
		t.Errorf("ids = %v", ids)
	}
	if _, ok := ids["33333333333"]; ok {
		t.Error("unknown cpf resolved")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWriteContractsDropsUnresolved(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO `contracts`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 2))

	contracts := []*models.Contract{
		{CPF: "11111111111", ContractNumber: "C1", LenderCode: "341"},
		{CPF: "99999999999", ContractNumber: "C2", LenderCode: "341"},
		{CPF: "11111111111", ContractNumber: "C3", LenderCode: "237"},
	}
	ids := map[string]uint{"11111111111": 10}

	w, _ := testWriter(gdb, 10)
	written, dropped, failed := w.WriteContracts(context.Background(), contracts, ids, nil)

	if written != 2 || dropped != 1 || failed != 0 {
		t.Errorf("written/dropped/failed = %d/%d/%d, want 2/1/0", written, dropped, failed)
	}
	if contracts[0].ClientID != 10 || contracts[2].ClientID != 10 {
		t.Errorf("client ids not attached: %d/%d", contracts[0].ClientID, contracts[2].ClientID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
