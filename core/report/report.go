// Package report renders selected evaluations for download, as an HTML page or an Excel workbook.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/recqa/core/evaluation"
	appfs "github.com/trezcool/recqa/fs"
)

// Formats
const (
	FormatHTML = "html"
	FormatXLSX = "xlsx"
)

const (
	summarySheet   = "Evaluations"
	responsesSheet = "Responses"
	dateLayout     = "2006-01-02"
)

var (
	ErrInvalidFormat = errors.New("format must be one of html, xlsx")

	htmlTmpl    *template.Template
	htmlTmplErr error
	htmlOnce    sync.Once
)

type (
	Report struct {
		Title       string
		GeneratedAt time.Time
		Rows        []Row
		Average     evaluation.Score
	}

	Row struct {
		ID           string
		TeacherID    string
		ClassCode    string
		VideoID      string
		TemplateName string
		QAEvaluator  string
		OverallScore evaluation.Score
		CreatedAt    time.Time
		Lines        []Line
	}

	Line struct {
		Category    string
		Subcategory string
		Score       float64
		Comment     string
	}
)

// New builds a report of evals. Response lines follow the order of the evaluation's template.
func New(title string, evals []evaluation.Evaluation, templates []evaluation.Template, now time.Time) Report {
	byID := make(map[string]evaluation.Template, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}

	r := Report{
		Title:       title,
		GeneratedAt: now.UTC(),
		Rows:        make([]Row, 0, len(evals)),
		Average:     evaluation.AverageScore(evals),
	}
	for _, ev := range evals {
		tmpl, ok := byID[ev.TemplateID]
		row := Row{
			ID:           ev.ID,
			TeacherID:    ev.TeacherID,
			ClassCode:    ev.ClassCode,
			VideoID:      ev.VideoID,
			QAEvaluator:  ev.QAEvaluator,
			OverallScore: ev.OverallScore,
			CreatedAt:    ev.CreatedAt.UTC(),
		}
		if ok {
			row.TemplateName = tmpl.Name
		}
		row.Lines = lines(ev.Responses, categoryOrder(tmpl, ev.Responses))
		r.Rows = append(r.Rows, row)
	}
	return r
}

// categoryOrder lists the template's categories first, then any other answered category by name.
func categoryOrder(tmpl evaluation.Template, responses evaluation.Responses) []string {
	seen := make(map[string]bool, len(responses))
	order := make([]string, 0, len(responses))
	for _, cat := range tmpl.Categories {
		if _, ok := responses[cat.Name]; ok {
			order = append(order, cat.Name)
			seen[cat.Name] = true
		}
	}

	var rest []string
	for name := range responses {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func lines(responses evaluation.Responses, order []string) []Line {
	var ls []Line
	for _, cat := range order {
		for _, resp := range responses[cat] {
			ls = append(ls, Line{Category: cat, Subcategory: resp.Subcategory, Score: resp.Score, Comment: resp.Comment})
		}
	}
	return ls
}

// Filename returns the download name of a report in the given format.
func Filename(r Report, format string) string {
	return fmt.Sprintf("evaluations_%s.%s", r.GeneratedAt.Format("20060102_150405"), format)
}

func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/html; charset=UTF-8"
}

func ParseFormat(s string) (string, error) {
	switch s {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", ErrInvalidFormat
}

func parseHTMLTemplate() {
	htmlTmpl, htmlTmplErr = template.ParseFS(appfs.FS, path.Join(appfs.ReportTemplatesDir, "evaluations.gohtml"))
}

func RenderHTML(w io.Writer, r Report) error {
	htmlOnce.Do(parseHTMLTemplate)
	if htmlTmplErr != nil {
		return errors.Wrap(htmlTmplErr, "parsing report template")
	}
	return errors.Wrap(htmlTmpl.Execute(w, r), "rendering report")
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func scoreValue(s evaluation.Score) interface{} {
	if s.Valid {
		return s.Float64
	}
	return evaluation.NotAvailable
}

// RenderXLSX writes the report into a workbook with a summary sheet and a responses sheet.
func RenderXLSX(r Report) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(idx)
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "deleting default sheet")
	}
	if _, err = f.NewSheet(responsesSheet); err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	// summary
	_ = f.SetCellValue(summarySheet, "A1", r.Title)
	_ = f.MergeCell(summarySheet, "A1", "G1")
	_ = f.SetCellStyle(summarySheet, "A1", "A1", headerStyle)

	headers := []string{"Date", "Teacher", "Class code", "Video", "Template", "QA evaluator", "Overall score"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(summarySheet, cell(col, 2), h)
		_ = f.SetColWidth(summarySheet, col, col, 20)
	}
	_ = f.SetCellStyle(summarySheet, "A2", "G2", headerStyle)

	row := 3
	for _, rw := range r.Rows {
		_ = f.SetCellValue(summarySheet, cell("A", row), rw.CreatedAt.Format(dateLayout))
		_ = f.SetCellValue(summarySheet, cell("B", row), rw.TeacherID)
		_ = f.SetCellValue(summarySheet, cell("C", row), rw.ClassCode)
		_ = f.SetCellValue(summarySheet, cell("D", row), rw.VideoID)
		_ = f.SetCellValue(summarySheet, cell("E", row), rw.TemplateName)
		_ = f.SetCellValue(summarySheet, cell("F", row), rw.QAEvaluator)
		_ = f.SetCellValue(summarySheet, cell("G", row), scoreValue(rw.OverallScore))
		row++
	}
	_ = f.SetCellValue(summarySheet, cell("F", row), "Average")
	_ = f.SetCellValue(summarySheet, cell("G", row), scoreValue(r.Average))

	// responses
	respHeaders := []string{"Video", "Class code", "Category", "Subcategory", "Score", "Comment"}
	for i, h := range respHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(responsesSheet, cell(col, 1), h)
		_ = f.SetColWidth(responsesSheet, col, col, 22)
	}
	_ = f.SetCellStyle(responsesSheet, "A1", "F1", headerStyle)

	row = 2
	for _, rw := range r.Rows {
		for _, l := range rw.Lines {
			_ = f.SetCellValue(responsesSheet, cell("A", row), rw.VideoID)
			_ = f.SetCellValue(responsesSheet, cell("B", row), rw.ClassCode)
			_ = f.SetCellValue(responsesSheet, cell("C", row), l.Category)
			_ = f.SetCellValue(responsesSheet, cell("D", row), l.Subcategory)
			_ = f.SetCellValue(responsesSheet, cell("E", row), l.Score)
			_ = f.SetCellValue(responsesSheet, cell("F", row), l.Comment)
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err = f.Write(buf); err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}
