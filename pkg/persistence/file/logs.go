package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rsvphq/journey/pkg/models"
)

// LogRepository appends audit documents per enrollment. Logs outlive their
// enrollment; nothing here deletes them.
type LogRepository struct {
	persistence *Persistence
}

func (r *LogRepository) Append(ctx context.Context, entry *models.AutomationLog) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}

	// Nanosecond prefix keeps directory listing in append order.
	name := fmt.Sprintf("%020d-%s", entry.ExecutedAt.UnixNano(), entry.ID)

	return r.persistence.writeDocument(r.persistence.logsDir(entry.EnrollmentID), name, entry)
}

func (r *LogRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.AutomationLog, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listDocumentIDs(r.persistence.logsDir(enrollmentID))
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)

	entries := make([]*models.AutomationLog, 0, len(ids))

	for _, id := range ids {
		var entry models.AutomationLog

		found, err := r.persistence.readDocument(r.persistence.logsDir(enrollmentID), id, &entry)
		if err != nil {
			return nil, err
		}

		if found {
			entries = append(entries, &entry)
		}
	}

	return entries, nil
}
