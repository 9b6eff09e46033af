package attendance

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// WriteCSV 出席帳票を UTF-8 BOM 付き CSV で書き出す。
// Excel が BOM 無し UTF-8 を文字化けさせるので BOM を前置する。
func WriteCSV(w io.Writer, rows []ExportRow) error {
	enc := unicode.UTF8BOM.NewEncoder()
	cw := csv.NewWriter(transform.NewWriter(w, enc))

	header := []string{"student_number", "full_name", "session_id", "session_open_at", "clocked_at", "distance"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.StudentNumber,
			r.FullName,
			r.SessionULID,
			r.OpenAt.Format(time.RFC3339),
			r.ClockedAt.Format(time.RFC3339),
			strconv.FormatFloat(r.Distance, 'f', 4, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
