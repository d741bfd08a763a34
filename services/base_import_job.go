package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/gorm"

	"brokerage-backoffice-api/config"
	"brokerage-backoffice-api/models"
)

// ErrImportCancelled flows out of the chunk loop when the cooperative
// flag is observed. It is a control signal, not a failure: a cancelled
// run finishes with status cancelled, not error.
var ErrImportCancelled = errors.New("import cancelled")

// maxErrorDetails bounds the captured per-row error detail regardless
// of how many rows fail. The error count itself stays exact.
const maxErrorDetails = 100

type ImportErrorDetail struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult is the final tally of one run, produced once when the
// run reaches a terminal state and immutable afterwards.
type ImportResult struct {
	TotalRows         int                 `json:"total_rows"`
	SuccessCount      int                 `json:"success_count"`
	ErrorCount        int                 `json:"error_count"`
	DuplicateCount    int                 `json:"duplicate_count"`
	ContractsDetected int                 `json:"contracts_detected"`
	ContractsInserted int                 `json:"contracts_inserted"`
	Errors            []ImportErrorDetail `json:"errors,omitempty"`
}

func (r *ImportResult) addRowError(row int, msg string) {
	r.ErrorCount++
	if len(r.Errors) < maxErrorDetails {
		r.Errors = append(r.Errors, ImportErrorDetail{Row: row, Message: msg})
	}
}

// BaseImportInput describes one requested run.
type BaseImportInput struct {
	FilePath    string
	FileName    string // original upload name, for audit; defaults to FilePath
	Initiator   string
	NotifyEmail string // completion mail recipient, optional
	Profile     string // explicit profile name, optional
	DryRun      bool   // parse and dedup but skip all writes
	RecordRun   bool
	RemoveFile  bool // delete FilePath once the run is terminal (uploaded temp files)
}

// BaseImportJobService orchestrates one bulk import run end to end:
// read -> normalize -> write clients -> resolve ids -> write contracts
// -> finalize. Phases run strictly in sequence; the cancellation flag
// is observed at every chunk and batch boundary.
type BaseImportJobService struct {
	db       *gorm.DB
	runSvc   *ImportRunService
	progress *ProgressRegistry
}

func NewBaseImportJobService(db *gorm.DB) *BaseImportJobService {
	if db == nil {
		db = config.DB
	}
	return &BaseImportJobService{
		db:       db,
		runSvc:   NewImportRunService(db),
		progress: Progress,
	}
}

// prepare runs the pre-flight checks shared by Run and Launch. All
// refusals here happen before any run record exists.
func (s *BaseImportJobService) prepare(input *BaseImportInput) (stream *RowStream, profile ImportProfile, estimated int, fileName string, err error) {
	if input == nil {
		return nil, ImportProfile{}, 0, "", errors.New("input is nil")
	}
	if strings.TrimSpace(input.FilePath) == "" {
		return nil, ImportProfile{}, 0, "", errors.New("file path is required")
	}
	fileName = input.FileName
	if fileName == "" {
		fileName = input.FilePath
	}

	info, err := os.Stat(input.FilePath)
	if err != nil {
		return nil, ImportProfile{}, 0, "", fmt.Errorf("cannot open file: %w", err)
	}
	if info.Size() == 0 {
		return nil, ImportProfile{}, 0, "", errors.New("file is empty")
	}
	if info.Size() > MaxImportFileSize {
		return nil, ImportProfile{}, 0, "", fmt.Errorf("file exceeds the maximum size of %d MB", MaxImportFileSize/(1024*1024))
	}

	stream, err = OpenRowStream(input.FilePath)
	if err != nil {
		return nil, ImportProfile{}, 0, "", err
	}
	estimated, err = stream.EstimateRows()
	if err != nil {
		return nil, ImportProfile{}, 0, "", fmt.Errorf("estimate rows: %w", err)
	}
	profile, err = SelectProfile(input.Profile, estimated)
	if err != nil {
		return nil, ImportProfile{}, 0, "", err
	}
	return stream, profile, estimated, fileName, nil
}

// Run executes one import synchronously. Pre-flight refusals (missing
// file, empty file, size or row limits) happen before the run record
// exists and return a nil result. Once the run has started, every
// failure still yields a best-effort result reflecting the work done
// so far.
func (s *BaseImportJobService) Run(ctx context.Context, input *BaseImportInput) (*ImportResult, *models.ImportRun, error) {
	stream, profile, estimated, fileName, err := s.prepare(input)
	if err != nil {
		return nil, nil, err
	}

	var run *models.ImportRun
	if input.RecordRun {
		run, err = s.runSvc.Start(fileName, input.Initiator, profile.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("create import run: %w", err)
		}
	}

	var tracker *RunTracker
	if run != nil {
		tracker = s.progress.Register(run.ID)
	} else {
		tracker = NewProgressRegistry().Register(0)
	}

	return s.runPipeline(ctx, stream, profile, estimated, tracker, run, input, fileName)
}

// Launch validates the file, creates the run record and starts the
// pipeline in the background. The returned run can be polled right
// away through the progress registry.
func (s *BaseImportJobService) Launch(input *BaseImportInput) (*models.ImportRun, error) {
	stream, profile, estimated, fileName, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	run, err := s.runSvc.Start(fileName, input.Initiator, profile.Name)
	if err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	tracker := s.progress.Register(run.ID)

	go func() {
		// Detached from the request context on purpose: the run keeps
		// going after the HTTP response, cancellation is the flag.
		if _, _, err := s.runPipeline(context.Background(), stream, profile, estimated, tracker, run, input, fileName); err != nil {
			log.Printf("[base-import] run %d failed: %v", run.ID, err)
		}
	}()
	return run, nil
}

func (s *BaseImportJobService) runPipeline(ctx context.Context, stream *RowStream, profile ImportProfile, estimated int, tracker *RunTracker, run *models.ImportRun, input *BaseImportInput, fileName string) (*ImportResult, *models.ImportRun, error) {
	result := &ImportResult{}
	finalErr, cancelled := s.execute(ctx, stream, profile, estimated, tracker, result, input.DryRun)

	status := models.ImportRunStatusCompleted
	phase := PhaseDone
	message := fmt.Sprintf("imported %d clients and %d contracts (%d errors, %d duplicates)",
		result.SuccessCount, result.ContractsInserted, result.ErrorCount, result.DuplicateCount)
	errMsg := ""
	switch {
	case cancelled:
		status = models.ImportRunStatusCancelled
		phase = PhaseCancelled
		message = fmt.Sprintf("cancelled after %d rows", result.TotalRows)
	case finalErr != nil:
		status = models.ImportRunStatusError
		phase = PhaseError
		message = finalErr.Error()
		errMsg = finalErr.Error()
	}

	if run != nil {
		if err := s.runSvc.Finish(run.ID, status, result, errMsg); err != nil {
			log.Printf("[base-import] failed to persist run %d status: %v", run.ID, err)
		}
		if updated, err := s.runSvc.GetByID(run.ID); err == nil {
			run = updated
		}
	}
	tracker.Finish(phase, message, result)
	s.notify(input, fileName, status, result)

	if input.RemoveFile {
		if err := os.Remove(input.FilePath); err != nil {
			log.Printf("[base-import] failed to remove %s: %v", input.FilePath, err)
		}
	}

	return result, run, finalErr
}

func (s *BaseImportJobService) execute(ctx context.Context, stream *RowStream, profile ImportProfile, estimated int, tracker *RunTracker, result *ImportResult, dryRun bool) (finalErr error, cancelled bool) {
	buffers := NewDedupBuffers()
	var mapping *ColumnMapping

	readPct := func(rows int) float64 {
		if estimated <= 0 {
			return 1
		}
		return min(50*float64(rows)/float64(estimated), 50)
	}

	rowsSeen := 0
	readErr := stream.Stream(ctx, profile.ChunkSize,
		func(header []string) error {
			mapping = MapColumns(header)
			if !mapping.HasField(FieldCPF) {
				log.Printf("[base-import] no identifier column recognized in header %v; all rows will be rejected", header)
			}
			tracker.Update(PhaseReading, 0, fmt.Sprintf("%d of %d columns recognized", mapping.MappedCount(), len(header)))
			return nil
		},
		func(chunk []RawRow) error {
			if tracker.Cancelled() {
				return ErrImportCancelled
			}
			tracker.Update(PhaseReading, readPct(rowsSeen), fmt.Sprintf("reading row %d", rowsSeen+1))

			for _, row := range chunk {
				rowsSeen++
				result.TotalRows++

				client, contract, err := NormalizeRow(row.Cells, mapping)
				if err != nil {
					result.addRowError(row.Line, err.Error())
					continue
				}
				buffers.AddClient(client)
				if contract != nil {
					if buffers.AddContract(contract) {
						result.ContractsDetected++
					} else {
						result.DuplicateCount++
					}
				}
			}
			tracker.Update(PhaseProcessing, readPct(rowsSeen),
				fmt.Sprintf("%d rows processed, %d unique clients", rowsSeen, buffers.ClientCount()))
			return nil
		})
	if errors.Is(readErr, ErrImportCancelled) || errors.Is(readErr, context.Canceled) {
		return nil, true
	}
	if readErr != nil {
		return readErr, false
	}
	if tracker.Cancelled() {
		return nil, true
	}

	if dryRun {
		result.SuccessCount = buffers.ClientCount()
		return nil, false
	}

	writer := NewBatchWriter(s.db, profile)
	clients := buffers.Clients()
	contracts := buffers.Contracts()

	stopped := false
	suspend := func(phase string, base, span float64, total int) func(done int) bool {
		return func(done int) bool {
			if tracker.Cancelled() {
				stopped = true
				return false
			}
			pct := base
			if total > 0 {
				pct = base + span*float64(done)/float64(total)
			}
			tracker.Update(phase, pct, fmt.Sprintf("%d/%d records written", done, total))
			return true
		}
	}

	tracker.Update(PhaseSavingClients, 50, fmt.Sprintf("writing %d clients", len(clients)))
	written, failed := writer.WriteClients(ctx, clients, suspend(PhaseSavingClients, 50, 25, len(clients)))
	result.SuccessCount = written
	result.ErrorCount += failed
	if stopped {
		return nil, true
	}

	cpfs := make([]string, 0, len(clients))
	for _, c := range clients {
		cpfs = append(cpfs, c.CPF)
	}
	ids := writer.ResolveClientIDs(ctx, cpfs)

	tracker.Update(PhaseSavingContracts, 75, fmt.Sprintf("writing %d contracts", len(contracts)))
	inserted, dropped, cFailed := writer.WriteContracts(ctx, contracts, ids, suspend(PhaseSavingContracts, 75, 24, len(contracts)))
	result.ContractsInserted = inserted
	result.ErrorCount += cFailed
	if dropped > 0 {
		log.Printf("[base-import] %d contracts dropped: client id could not be resolved", dropped)
	}
	if stopped {
		return nil, true
	}
	return nil, false
}

// notify sends the completion mail to the initiator. Best effort: a
// mailer failure is logged and ignored.
func (s *BaseImportJobService) notify(input *BaseImportInput, fileName, status string, result *ImportResult) {
	if input.NotifyEmail == "" || input.DryRun {
		return
	}
	subject := fmt.Sprintf("Import %s: %s", status, fileName)
	body := fmt.Sprintf(
		"<p>Import of <b>%s</b> finished with status <b>%s</b>.</p>"+
			"<ul><li>Rows: %d</li><li>Clients written: %d</li><li>Contracts: %d of %d detected</li>"+
			"<li>Errors: %d</li><li>Duplicates: %d</li></ul>",
		fileName, status, result.TotalRows, result.SuccessCount,
		result.ContractsInserted, result.ContractsDetected,
		result.ErrorCount, result.DuplicateCount)
	if err := config.SendMail([]string{input.NotifyEmail}, subject, body); err != nil {
		log.Printf("[base-import] completion mail to %s failed: %v", input.NotifyEmail, err)
	}
}
