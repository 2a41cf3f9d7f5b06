package task

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Recorder appends to the audit ledger. Entries live inside the task record,
// so they commit (or roll back) together with the mutation they describe.
// A state change can never outlive its audit row or vice versa.
type Recorder struct {
	now func() time.Time
}

func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Record fills in identity and timestamp and appends the entry. It never
// fails: persistence failures surface when the enclosing record is written,
// rolling back the whole mutation.
func (r *Recorder) Record(rec *Record, entry History) *History {
	entry.ID = ulid.Make().String()
	entry.TaskID = rec.Task.ID
	entry.CreatedAt = r.now()
	rec.Histories = append(rec.Histories, entry)
	return &rec.Histories[len(rec.Histories)-1]
}

func intPtr(v int) *int {
	return &v
}
