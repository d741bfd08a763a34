package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"brokerage-backoffice-api/config"
	"brokerage-backoffice-api/models"
)

var ErrImportRunNotFound = errors.New("import run not found")

// ImportRunService owns the lifecycle of import_runs rows and the
// matching import_logs audit entries.
type ImportRunService struct {
	db *gorm.DB
}

func NewImportRunService(db *gorm.DB) *ImportRunService {
	if db == nil {
		db = config.DB
	}
	return &ImportRunService{db: db}
}

// Start creates the run record in processing state and writes the
// opening audit log entry.
func (s *ImportRunService) Start(fileName, initiator, profile string) (*models.ImportRun, error) {
	if initiator == "" {
		initiator = "unknown"
	}
	run := &models.ImportRun{
		FileName:  fileName,
		Initiator: initiator,
		Profile:   profile,
		Status:    models.ImportRunStatusProcessing,
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	s.appendLog(run.ID, "started", fmt.Sprintf("import of %s started", fileName), initiator)
	return run, nil
}

// Finish persists the terminal status and final counters exactly once,
// and appends the closing audit entry.
func (s *ImportRunService) Finish(runID uint, status string, result *ImportResult, errMsg string) error {
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": time.Now(),
	}
	if result != nil {
		updates["total_rows"] = result.TotalRows
		updates["success_count"] = result.SuccessCount
		updates["error_count"] = result.ErrorCount
		updates["duplicate_count"] = result.DuplicateCount
		updates["contracts_detected"] = result.ContractsDetected
		updates["contracts_inserted"] = result.ContractsInserted
	}
	if errMsg != "" {
		if len(errMsg) > 2000 {
			errMsg = errMsg[:1997] + "..."
		}
		updates["error_message"] = errMsg
	}

	res := s.db.Model(&models.ImportRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrImportRunNotFound
	}

	msg := fmt.Sprintf("import finished with status %s", status)
	if errMsg != "" {
		msg = fmt.Sprintf("%s: %s", msg, errMsg)
	}
	s.appendLog(runID, status, msg, "")
	return nil
}

func (s *ImportRunService) appendLog(runID uint, action, message, initiator string) {
	entry := &models.ImportLog{RunID: runID, Action: action, Message: message, Initiator: initiator}
	if err := s.db.Create(entry).Error; err != nil {
		// Audit only; a failed log line must not affect the run.
		log.Printf("failed to append import log for run %d: %v", runID, err)
	}
}

func (s *ImportRunService) GetByID(id uint) (*models.ImportRun, error) {
	var run models.ImportRun
	if err := s.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImportRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (s *ImportRunService) List(limit, offset int) ([]models.ImportRun, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.Model(&models.ImportRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.ImportRun
	err := s.db.Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
