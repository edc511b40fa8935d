package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV renders entries as CSV for compliance exports.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"occurred_at", "user_id", "capability", "action", "outcome", "resource", "endpoint", "ip_address"}); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			entry.OccurredAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(entry.UserID, 10),
			entry.CapabilityCode,
			string(entry.Action),
			string(entry.Outcome),
			entry.Resource,
			entry.Endpoint,
			entry.IPAddress,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
