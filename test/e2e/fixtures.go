package e2e

import (
	"archive/zip"
	"bytes"

	"github.com/xuri/excelize/v2"
)

// LessonFileExtensions is the list of lesson file extensions used in E2E file-based tests.
// The extractor also supports .pdf; PDF is not generated here (no minimal PDF with
// extractable text).
var LessonFileExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx",
	".odp", ".ods",
}

// MinimalLessonFile returns the bytes of a minimal lesson file of the given extension
// containing text. For plain types the content is the raw text.
func MinimalLessonFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(text), nil
	case ".pptx":
		return minimalPptx(text), nil
	case ".xlsx":
		return minimalXlsx(text)
	case ".odp":
		return minimalOpenDocument(`<office:presentation><draw:page><draw:frame><draw:text-box><text:p>` + text + `</text:p></draw:text-box></draw:frame></draw:page></office:presentation>`), nil
	case ".ods":
		return minimalOpenDocument(`<office:spreadsheet><table:table table:name="Sheet1"><table:table-row><table:table-cell><text:p>` + text + `</text:p></table:table-cell></table:table-row></table:table></office:spreadsheet>`), nil
	default:
		return []byte(text), nil
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalPptx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("ppt/slides/slide1.xml")
	_, _ = fw.Write([]byte(`<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// minimalOpenDocument wraps body in an OpenDocument content.xml.
func minimalOpenDocument(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(`<office:document-content xmlns:office="o" xmlns:text="t" xmlns:draw="d" xmlns:table="tb"><office:body>` + body + `</office:body></office:document-content>`))
	_ = w.Close()
	return buf.Bytes()
}
