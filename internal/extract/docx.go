package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
	docxDocumentXMLPath = "word/document.xml"

	// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
	contentTypesPath = "[Content_Types].xml"

	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wpBlock matches one paragraph, <w:p> with or without attributes.
	wpBlock = regexp.MustCompile(`(?s)<w:p[\s>].*?</w:p>`)

	// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>.
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

	// overrideRe captures each Override element; the part name and type are matched separately
	// because attribute order varies between producers.
	overrideRe    = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameAttr  = regexp.MustCompile(`PartName="([^"]+)"`)
	mainTypeMatch = `ContentType="` + docxMainContentType + `"`
)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	ct, err := readZipPart(zr, contentTypesPath)
	if err != nil || ct == nil {
		return ""
	}
	for _, o := range overrideRe.FindAll(ct, -1) {
		if !strings.Contains(string(o), mainTypeMatch) {
			continue
		}
		if m := partNameAttr.FindSubmatch(o); m != nil {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return ""
}

// extractDOCX extracts text from .docx bytes, one line per paragraph. The main part is located
// through [Content_Types].xml and falls back to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipPart(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return textRuns(docXML, wpBlock, wtTag), nil
}
