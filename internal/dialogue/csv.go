package dialogue

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var speakerColumns = map[string]bool{
	"speaker": true, "locuteur": true, "interlocuteur": true, "role": true,
	"rôle": true, "personne": true, "name": true, "nom": true,
}

var contentColumns = map[string]bool{
	"message": true, "content": true, "contenu": true, "text": true,
	"texte": true, "réplique": true, "replique": true,
}

var extraColumns = map[string]bool{
	"audio_file_path": true, "timestamp": true,
}

func isHeader(row []string) bool {
	named := 0
	for _, cell := range row {
		cell = strings.ToLower(strings.TrimSpace(cell))
		if cell == "" {
			continue
		}
		if !speakerColumns[cell] && !contentColumns[cell] && !extraColumns[cell] {
			return false
		}
		named++
	}
	return named > 0
}

func headerColumns(row []string) (speakerCol, contentCol int) {
	speakerCol, contentCol = -1, -1
	for i, cell := range row {
		cell = strings.ToLower(strings.TrimSpace(cell))
		if speakerCol < 0 && speakerColumns[cell] {
			speakerCol = i
		}
		if contentCol < 0 && contentColumns[cell] {
			contentCol = i
		}
	}
	if speakerCol < 0 || contentCol < 0 || speakerCol == contentCol {
		return 0, 1
	}
	return speakerCol, contentCol
}

func csvDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	if strings.Contains(first, ";") && !strings.Contains(first, ",") {
		return ';'
	}
	return ','
}

func parseCSV(text string) (*Dialogue, error) {
	if strings.TrimSpace(text) == "" {
		return nil, formatErr("csv", "empty file", nil)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = csvDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	d := New("", LevelBeginner, "")
	roles := newRoleAssigner()
	speakerCol, contentCol := 0, 1

	for row := 0; ; row++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Format: "csv", Line: row + 1, Msg: "unreadable row", Err: err}
		}
		line, _ := r.FieldPos(0)

		if len(record) < 2 {
			return nil, &FormatError{Format: "csv", Line: line, Msg: "expected two columns (speaker, message)"}
		}
		if row == 0 && isHeader(record) {
			speakerCol, contentCol = headerColumns(record)
			continue
		}
		if speakerCol >= len(record) || contentCol >= len(record) {
			return nil, &FormatError{Format: "csv", Line: line, Msg: "row is missing the speaker or message column"}
		}

		speaker := strings.TrimSpace(record[speakerCol])
		content := strings.TrimSpace(record[contentCol])
		if content == "" {
			continue
		}
		d.Messages = append(d.Messages, Message{Role: roles.assign(speaker), Content: content})
	}

	return d, nil
}
