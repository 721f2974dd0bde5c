package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// maxPartBytes caps how much of one zip entry is read, guarding against zip bombs.
const maxPartBytes = 64 << 20

// readZipPart returns the contents of the named entry, or nil if it is absent.
func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxPartBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	return zr, nil
}

// textRuns joins the inner text of every run matched by runRe inside each block matched
// by blockRe. Runs are concatenated; blocks become lines. Entities are decoded.
func textRuns(xml []byte, blockRe, runRe *regexp.Regexp) string {
	var lines []string
	for _, block := range blockRe.FindAll(xml, -1) {
		var b strings.Builder
		for _, m := range runRe.FindAllSubmatch(block, -1) {
			b.Write(m[1])
		}
		if line := strings.TrimSpace(html.UnescapeString(b.String())); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
