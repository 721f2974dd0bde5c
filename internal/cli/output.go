// Package cli formats kotae results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetLen = 160

// WriteAnswer writes ans to w. The JSON form is the /ask response body.
func WriteAnswer(w io.Writer, ans *models.Answer, elapsed time.Duration, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, models.AskResponse{
			Answer:            ans.Text,
			Sources:           ans.Sources,
			Confidence:        ans.Confidence,
			ResponseTime:      elapsed.Milliseconds(),
			NoRelevantContent: ans.NoRelevantContent,
			RequestID:         ans.RequestID,
		})
	}

	fmt.Fprintf(w, "\n%s\n\n", ans.Text)
	if ans.NoRelevantContent {
		fmt.Fprintf(w, "(no course passage reached the relevance threshold, %dms)\n", elapsed.Milliseconds())
		return nil
	}
	fmt.Fprintf(w, "Sources: %s\n", strings.Join(ans.Sources, ", "))
	fmt.Fprintf(w, "Confidence: %.4f | %dms\n", ans.Confidence, elapsed.Milliseconds())
	if len(ans.Matches) > 0 {
		fmt.Fprintln(w)
		for i, m := range ans.Matches {
			fmt.Fprintf(w, "%d. [%.4f] %s #%d\n", i+1, m.Score, m.Chunk.SourceTitle, m.Chunk.Index)
			fmt.Fprintf(w, "   %s\n", utils.Truncate(strings.Join(strings.Fields(m.Chunk.Text), " "), snippetLen))
		}
	}
	return nil
}

// WriteStatus writes a /status response to w.
func WriteStatus(w io.Writer, st *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Status:          %s\n", st.Status)
	if st.Details != "" {
		fmt.Fprintf(w, "Details:         %s\n", st.Details)
	}
	if st.Model != "" {
		fmt.Fprintf(w, "Model:           %s\n", st.Model)
	}
	if st.EmbeddingModel != "" {
		fmt.Fprintf(w, "Embedding model: %s\n", st.EmbeddingModel)
	}
	if c := st.Cache; c != nil {
		fmt.Fprintf(w, "Cache:           %s\n", c.State)
		if c.GenerationID != "" {
			fmt.Fprintf(w, "  generation:    %s (%d documents, %d chunks, %d dims, %s old)\n",
				c.GenerationID, c.Documents, c.Chunks, c.Dimensions, time.Duration(c.AgeSeconds)*time.Second)
		}
		fmt.Fprintf(w, "  rebuilds:      %d (%d failed)\n", c.Rebuilds, c.Failures)
		if c.LastError != "" {
			fmt.Fprintf(w, "  last error:    %s\n", c.LastError)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
