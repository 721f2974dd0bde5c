package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// odfContentPath holds the body of every OpenDocument package.
const odfContentPath = "content.xml"

var (
	// odfParagraph matches text:p and text:h elements but not their empty self-closing forms.
	odfParagraph = regexp.MustCompile(`(?s)<text:[ph](?:\s[^>]*[^/])?>.*?</text:[ph]>`)
	odfRun       = regexp.MustCompile(`>([^<]+)<`)
	odfSpace     = regexp.MustCompile(`<text:(?:s|tab)(?:\s[^>]*)?/>`)

	odpPage = regexp.MustCompile(`(?s)<draw:page[\s>].*?</draw:page>`)

	odsTable     = regexp.MustCompile(`(?s)<table:table(?:\s[^>]*[^/])?>.*?</table:table>`)
	odsTableName = regexp.MustCompile(`^<table:table[^>]*\stable:name="([^"]*)"`)
	odsRow       = regexp.MustCompile(`(?s)<table:table-row(?:\s[^>]*[^/])?>.*?</table:table-row>`)
	odsCell      = regexp.MustCompile(`(?s)<table:table-cell(?:\s[^>]*[^/])?>.*?</table:table-cell>`)
)

// readODFContent returns content.xml with text:s and text:tab turned into spaces.
func readODFContent(content []byte) ([]byte, error) {
	zr, err := openZip(content)
	if err != nil {
		return nil, err
	}
	data, err := readZipPart(zr, odfContentPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%s not found", odfContentPath)
	}
	return odfSpace.ReplaceAll(data, []byte(" ")), nil
}

// extractODP extracts text from .odp bytes in page order, one line per paragraph
// and a blank line between pages.
func extractODP(content []byte) (string, error) {
	data, err := readODFContent(content)
	if err != nil {
		return "", fmt.Errorf("extract ODP: %w", err)
	}
	pages := odpPage.FindAll(data, -1)
	if pages == nil {
		return textRuns(data, odfParagraph, odfRun), nil
	}
	var parts []string
	for _, page := range pages {
		if text := textRuns(page, odfParagraph, odfRun); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractODS renders every table of an .ods spreadsheet as tab-separated rows, laid
// out like extractExcel.
func extractODS(content []byte) (string, error) {
	data, err := readODFContent(content)
	if err != nil {
		return "", fmt.Errorf("extract ODS: %w", err)
	}
	tables := odsTable.FindAll(data, -1)
	var parts []string
	for _, table := range tables {
		var buf strings.Builder
		if len(tables) > 1 {
			if m := odsTableName.FindSubmatch(table); m != nil {
				buf.WriteString(html.UnescapeString(string(m[1])))
				buf.WriteByte('\n')
			}
		}
		for _, row := range odsRow.FindAll(table, -1) {
			var cells []string
			for _, cell := range odsCell.FindAll(row, -1) {
				cells = append(cells, strings.ReplaceAll(textRuns(cell, odfParagraph, odfRun), "\n", " "))
			}
			line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
			if line != "" {
				buf.WriteString(line)
				buf.WriteByte('\n')
			}
		}
		if s := strings.TrimSpace(buf.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
