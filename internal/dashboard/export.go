package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wolfman30/chatdesk/internal/transcript"
)

const transcriptSheet = "Transcript"

// ExportXLSX streams the conversation transcript as a spreadsheet.
// GET /dashboard/conversations/{conversationID}/export.xlsx
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	conv, msgs, err := h.chat.Transcript(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	f, err := buildWorkbook(conv, msgs)
	if err != nil {
		h.logger.Error("dashboard: build export failed", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "export failed", "")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="conversation_%s.xlsx"`, id))
	if err := f.Write(w); err != nil {
		h.logger.Error("dashboard: write export failed", "error", err, "conversation_id", id)
	}
}

func buildWorkbook(conv *transcript.Conversation, msgs []transcript.Message) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(transcriptSheet)
	if err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	meta := [][]any{
		{"Conversation", conv.ID.String()},
		{"Operator", conv.OperatorID},
		{"Status", string(conv.Status)},
		{"Customer email", conv.Contact.Email},
		{"Customer phone", conv.Contact.Phone},
		{"Started", conv.StartedAt.UTC().Format(time.RFC3339)},
	}
	row := 1
	for _, m := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(transcriptSheet, cell, &m); err != nil {
			return nil, err
		}
		row++
	}
	row++

	headers := []any{"#", "Time", "Role", "Message"}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(transcriptSheet, cell, &headers); err != nil {
		return nil, err
	}
	row++
	for _, m := range msgs {
		values := []any{m.Seq, m.CreatedAt.UTC().Format(time.RFC3339), string(m.Role), m.Content}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(transcriptSheet, cell, &values); err != nil {
			return nil, err
		}
		row++
	}
	_ = f.SetColWidth(transcriptSheet, "D", "D", 80)
	return f, nil
}
