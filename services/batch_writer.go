package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brokerage-backoffice-api/models"
)

// resolveLookupSize bounds how many natural keys one id-resolution
// query may carry.
const resolveLookupSize = 1000

var clientUpdateColumns = []string{
	"benefit_number", "name", "birth_date", "benefit_start", "benefit_kind",
	"benefit_value", "margin_value", "bank_code", "agency", "account",
	"phone", "city", "state", "updated_at",
}

var contractUpdateColumns = []string{
	"client_id", "lender_code", "installment_value", "installments",
	"contract_value", "start_date", "end_date", "updated_at",
}

// BatchWriter pushes buffered records to the store in fixed-size slices
// with a pacing delay between slices. All writes are natural-key
// upserts, so a retried or out-of-order batch can never duplicate rows.
// A failed slice is logged and counted, never fatal.
type BatchWriter struct {
	db        *gorm.DB
	batchSize int
	delay     time.Duration
	sleep     func(time.Duration) // swapped out in tests
}

func NewBatchWriter(db *gorm.DB, profile ImportProfile) *BatchWriter {
	return &BatchWriter{
		db:        db,
		batchSize: profile.BatchSize,
		delay:     profile.BatchDelay,
		sleep:     time.Sleep,
	}
}

// WriteClients upserts the client records slice by slice. onBatch runs
// after every slice (the cooperative suspension point); returning false
// from it stops the loop before the next slice is issued.
func (w *BatchWriter) WriteClients(ctx context.Context, clients []*models.Client, onBatch func(done int) bool) (written, failed int) {
	for start := 0; start < len(clients); start += w.batchSize {
		end := min(start+w.batchSize, len(clients))
		slice := clients[start:end]

		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cpf"}},
			DoUpdates: clause.AssignmentColumns(clientUpdateColumns),
		}).Create(&slice).Error
		if err != nil {
			log.Printf("[base-import] client batch %d-%d failed: %v", start+1, end, err)
			failed += len(slice)
		} else {
			written += len(slice)
		}

		if !w.pause(onBatch, end, end < len(clients)) {
			return written, failed
		}
	}
	return written, failed
}

// ResolveClientIDs maps each CPF back to its store-assigned client_id,
// querying in bounded key batches. Keys whose lookup fails are simply
// absent from the result; their contracts will be dropped.
func (w *BatchWriter) ResolveClientIDs(ctx context.Context, cpfs []string) map[string]uint {
	ids := make(map[string]uint, len(cpfs))
	for start := 0; start < len(cpfs); start += resolveLookupSize {
		end := min(start+resolveLookupSize, len(cpfs))

		var rows []struct {
			ClientID uint
			CPF      string
		}
		err := w.db.WithContext(ctx).Model(&models.Client{}).
			Select("client_id, cpf").
			Where("cpf IN ?", cpfs[start:end]).
			Find(&rows).Error
		if err != nil {
			log.Printf("[base-import] id resolution batch %d-%d failed: %v", start+1, end, err)
			continue
		}
		for _, r := range rows {
			ids[r.CPF] = r.ClientID
		}
	}
	return ids
}

// WriteContracts attaches resolved client ids and upserts the contract
// records with the same slice-and-pace discipline. Contracts whose
// client id cannot be resolved are dropped silently.
func (w *BatchWriter) WriteContracts(ctx context.Context, contracts []*models.Contract, ids map[string]uint, onBatch func(done int) bool) (written, dropped, failed int) {
	linked := make([]*models.Contract, 0, len(contracts))
	for _, ct := range contracts {
		id, ok := ids[ct.CPF]
		if !ok {
			dropped++
			continue
		}
		ct.ClientID = id
		linked = append(linked, ct)
	}

	for start := 0; start < len(linked); start += w.batchSize {
		end := min(start+w.batchSize, len(linked))
		slice := linked[start:end]

		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cpf"}, {Name: "contract_number"}},
			DoUpdates: clause.AssignmentColumns(contractUpdateColumns),
		}).Create(&slice).Error
		if err != nil {
			log.Printf("[base-import] contract batch %d-%d failed: %v", start+1, end, err)
			failed += len(slice)
		} else {
			written += len(slice)
		}

		if !w.pause(onBatch, end, end < len(linked)) {
			return written, dropped, failed
		}
	}
	return written, dropped, failed
}

// pause runs the suspension callback and, when more slices remain,
// applies the inter-batch delay. Returns false when the caller asked to
// stop; the in-flight slice has already completed by then.
func (w *BatchWriter) pause(onBatch func(done int) bool, done int, more bool) bool {
	if onBatch != nil && !onBatch(done) {
		return false
	}
	if more && w.delay > 0 {
		w.sleep(w.delay)
	}
	return true
}
