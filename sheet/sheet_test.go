package sheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var defaultColumns = ColumnMap{Author: "Author Name", ISBN: "ISBN", Title: "Book Title"}

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	require.NoError(t, book.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, book.SetSheetRow(sheet, cell, &values))
	}

	path := filepath.Join(t.TempDir(), "books.xlsx")
	require.NoError(t, book.SaveAs(path))
	return path
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffAuthor Name,ISBN,Book Title,Publisher\n" +
		"Jane Doe,978-3-631-12345-6,Topology,PL\n" +
		",,,\n" +
		"John Roe,,\"Sprache, Kultur\"\n" +
		",,,\n"

	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Author Name", "ISBN", "Book Title", "Publisher"}, table.Header)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"Jane Doe", "978-3-631-12345-6", "Topology", "PL"}, table.Rows[0])
	assert.Equal(t, []string{"", "", "", ""}, table.Rows[1])
	// Short rows are padded to the header width.
	assert.Equal(t, []string{"John Roe", "", "Sprache, Kultur", ""}, table.Rows[2])
}

func TestBlankRowKeepsItsPlace(t *testing.T) {
	input := "Author Name,ISBN,Book Title\n" +
		"Jane Doe,,Topology\n" +
		",,\n" +
		",,Algebra\n"

	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	records, err := table.Records(defaultColumns)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2, records[1].Row)
	assert.Empty(t, records[1].Request.Title)
	assert.Empty(t, records[1].Request.ISBN)
	assert.Equal(t, "Algebra", records[2].Request.Title)
	assert.Equal(t, 3, records[2].Row)
}

func TestReadCSVWithoutHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrNoHeader)

	_, err = ReadCSV(strings.NewReader(" , \nJane,1,T\n"))
	require.ErrorIs(t, err, ErrNoHeader)
}

func TestReadTableXLSX(t *testing.T) {
	path := writeWorkbook(t, "Books", [][]interface{}{
		{"Author Name", "ISBN", "Book Title"},
		{"Jane Doe", "9783631123456", "Topology"},
		{"", "", ""},
		{"", "", "Algebra"},
	})

	table, err := ReadTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Author Name", "ISBN", "Book Title"}, table.Header)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"", "", ""}, table.Rows[1])
	assert.Equal(t, []string{"", "", "Algebra"}, table.Rows[2])

	named, err := ReadTable(path, "Books")
	require.NoError(t, err)
	assert.Equal(t, table, named)

	_, err = ReadTable(path, "Missing")
	require.Error(t, err)
}

func TestReadTableCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.CSV")
	require.NoError(t, os.WriteFile(path, []byte("ISBN,Book Title,Author Name\n1,T,A\n"), 0o644))

	table, err := ReadTable(path, "ignored")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
}

func TestReadTableRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ReadTable(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input format")

	_, err = ReadTable(filepath.Join(t.TempDir(), "absent.csv"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestColumn(t *testing.T) {
	table := &Table{Header: []string{"isbn", "ISBN", "Book Title"}}

	tests := []struct {
		name string
		want int
	}{
		{name: "ISBN", want: 1},
		{name: "isbn", want: 0},
		{name: "book title", want: 2},
		{name: " Book Title ", want: 2},
		{name: "Author Name", want: -1},
		{name: "", want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Column(tt.name))
		})
	}
}

func TestRecords(t *testing.T) {
	table := &Table{
		Header: []string{"Book Title", "ISBN", "Author Name", "Year"},
		Rows: [][]string{
			{" Topology ", "978-3-631-12345-6", "Jane Doe", "2020"},
			{"Algebra", "nan", "", ""},
		},
	}

	records, err := table.Records(defaultColumns)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].Row)
	assert.Equal(t, "Topology", records[0].Request.Title)
	assert.Equal(t, "978-3-631-12345-6", records[0].Request.ISBN)
	assert.Equal(t, "Jane Doe", records[0].Request.Author)
	assert.Empty(t, records[0].Request.PublicationDate)
	assert.Equal(t, table.Rows[0], records[0].Fields)

	assert.Equal(t, 2, records[1].Row)
	assert.Equal(t, "nan", records[1].Request.ISBN)

	withDate := defaultColumns
	withDate.PublicationDate = "year"
	records, err = table.Records(withDate)
	require.NoError(t, err)
	assert.Equal(t, "2020", records[0].Request.PublicationDate)
}

func TestRecordsMissingColumns(t *testing.T) {
	table := &Table{Header: []string{"Author Name", "Title"}}

	_, err := table.Records(defaultColumns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ISBN "ISBN"`)
	assert.Contains(t, err.Error(), `title "Book Title"`)
	assert.NotContains(t, err.Error(), "author")

	full := &Table{Header: []string{"Author Name", "ISBN", "Book Title"}}
	withDate := defaultColumns
	withDate.PublicationDate = "Publication Date"
	_, err = full.Records(withDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publication date")
}
