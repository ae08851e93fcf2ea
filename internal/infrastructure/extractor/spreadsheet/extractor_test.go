package spreadsheet

import (
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/submission-vault/internal/infrastructure/storage/localfs"
)

func TestExtractFlattensSheets(t *testing.T) {
	book := excelize.NewFile()
	_ = book.SetCellValue("Sheet1", "A1", "Vision")
	_ = book.SetCellValue("Sheet1", "B1", "Mission")
	_ = book.SetCellValue("Sheet1", "A2", "Goals")
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	_ = book.Close()

	storage, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	_ = storage.Save(context.Background(), "staging/grades.xlsx", buf, int64(buf.Len()), "")

	text, err := NewExtractor(storage).Extract(context.Background(), "staging/grades.xlsx", "grades.xlsx")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Vision\tMission\nGoals" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejectsNonWorkbook(t *testing.T) {
	storage, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	_ = storage.Save(context.Background(), "staging/x.xlsx", strings.NewReader("not a zip"), 0, "")

	if _, err := NewExtractor(storage).Extract(context.Background(), "staging/x.xlsx", "x.xlsx"); err == nil {
		t.Fatalf("expected parse error")
	}
}
