package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"brokerage-backoffice-api/models"
	"brokerage-backoffice-api/services"
	"brokerage-backoffice-api/utils"

	"github.com/gin-gonic/gin"
)

const importUploadDir = "uploads/import_runs"

var allowedImportExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
}

// CreateImport accepts a client base file upload and starts an import
// run in the background. The response carries the run record so the
// caller can poll progress immediately.
func CreateImport(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > services.MaxImportFileSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file exceeds the maximum size of 300 MB",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImportExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only CSV, TXT and XLSX files are accepted"})
		return
	}

	profile := utils.SanitizeInput(c.PostForm("profile"))
	if profile != "" {
		if _, ok := services.ProfileByName(profile); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown import profile: " + profile})
			return
		}
	}
	notifyEmail := utils.SanitizeInput(c.PostForm("notify_email"))
	if notifyEmail != "" && !utils.ValidateEmail(notifyEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification email"})
		return
	}

	if err := os.MkdirAll(importUploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare upload directory"})
		return
	}
	dst := filepath.Join(importUploadDir, utils.GenerateUniqueFilename(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded file"})
		return
	}

	initiator, _ := c.Get("email")
	initiatorEmail, _ := initiator.(string)

	input := &services.BaseImportInput{
		FilePath:    dst,
		FileName:    file.Filename,
		Initiator:   initiatorEmail,
		NotifyEmail: notifyEmail,
		Profile:     profile,
		DryRun:      c.PostForm("dry_run") == "true",
		RecordRun:   true,
		RemoveFile:  true,
	}

	run, err := services.NewBaseImportJobService(nil).Launch(input)
	if err != nil {
		os.Remove(dst)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run":     run,
		"message": "Import started",
	})
}

// ListImportRuns returns the run history, newest first.
func ListImportRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, total, err := services.NewImportRunService(nil).List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list import runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetImportRun returns one run's audit record.
func GetImportRun(c *gin.Context) {
	run, ok := findRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// GetImportProgress returns the live snapshot of a run. Runs that are
// no longer in memory (for example after a restart) fall back to the
// persisted record.
func GetImportProgress(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	if snap, found := services.Progress.Get(id); found {
		c.JSON(http.StatusOK, snap)
		return
	}

	run, err := services.NewImportRunService(nil).GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "import run not found"})
		return
	}
	c.JSON(http.StatusOK, services.ProgressSnapshot{
		RunID:     run.ID,
		Phase:     phaseForStatus(run.Status),
		Percent:   percentForStatus(run.Status),
		Message:   run.Status,
		Cancelled: run.Status == models.ImportRunStatusCancelled,
		Terminal:  run.Terminal(),
	})
}

// CancelImport sets the cooperative cancellation flag. The in-flight
// batch always completes; the run turns cancelled at the next chunk or
// batch boundary.
func CancelImport(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	if services.Progress.Cancel(id) {
		c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested"})
		return
	}

	run, err := services.NewImportRunService(nil).GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "import run not found"})
		return
	}
	c.JSON(http.StatusConflict, gin.H{
		"error":  "import run is already finished",
		"status": run.Status,
	})
}

// GetImportResult returns the final tally of a terminal run.
func GetImportResult(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	if snap, found := services.Progress.Get(id); found {
		if !snap.Terminal {
			c.JSON(http.StatusConflict, gin.H{"error": "import run is still in progress"})
			return
		}
		if snap.Result != nil {
			c.JSON(http.StatusOK, gin.H{"result": snap.Result})
			return
		}
	}

	run, err := services.NewImportRunService(nil).GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "import run not found"})
		return
	}
	if !run.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "import run is still in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": services.ImportResult{
		TotalRows:         int(run.TotalRows),
		SuccessCount:      int(run.SuccessCount),
		ErrorCount:        int(run.ErrorCount),
		DuplicateCount:    int(run.DuplicateCount),
		ContractsDetected: int(run.ContractsDetected),
		ContractsInserted: int(run.ContractsInserted),
	}})
}

func runID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return 0, false
	}
	return uint(id), true
}

func findRun(c *gin.Context) (*models.ImportRun, bool) {
	id, ok := runID(c)
	if !ok {
		return nil, false
	}
	run, err := services.NewImportRunService(nil).GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrImportRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "import run not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load import run"})
		}
		return nil, false
	}
	return run, true
}

func phaseForStatus(status string) string {
	switch status {
	case models.ImportRunStatusCompleted:
		return services.PhaseDone
	case models.ImportRunStatusCancelled:
		return services.PhaseCancelled
	case models.ImportRunStatusError:
		return services.PhaseError
	default:
		return services.PhaseProcessing
	}
}

func percentForStatus(status string) float64 {
	if status == models.ImportRunStatusCompleted {
		return 100
	}
	return 0
}
