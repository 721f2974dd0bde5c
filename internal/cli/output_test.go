package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

var sampleAnswer = &models.Answer{
	Text:       "Machine learning builds models from data.",
	Sources:    []string{"Intro to ML", "Statistics"},
	Confidence: 0.8123,
	RequestID:  "req-1",
	Matches: []models.ScoredChunk{
		{Chunk: models.Chunk{DocumentID: "ml", Index: 0, SourceTitle: "Intro to ML", Text: "Machine   learning\nbuilds models"}, Score: 0.8123},
	},
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer, 42*time.Millisecond, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.AskResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Answer != sampleAnswer.Text || decoded.ResponseTime != 42 || len(decoded.Sources) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleAnswer, 42*time.Millisecond, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{sampleAnswer.Text, "Sources: Intro to ML, Statistics", "Confidence: 0.8123", "Machine learning builds models"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer_noRelevantContent(t *testing.T) {
	var buf bytes.Buffer
	ans := &models.Answer{Text: models.NoRelevantContentMessage, NoRelevantContent: true}
	if err := WriteAnswer(&buf, ans, time.Millisecond, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Sources:") {
		t.Errorf("no sources expected:\n%s", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := &models.StatusResponse{
		Status:         models.StatusOperational,
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Cache:          &models.CacheStatus{State: "ready", GenerationID: "g1", Documents: 2, Chunks: 7, AgeSeconds: 61, Rebuilds: 1},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"operational", "gpt-4o-mini", "ready", "g1", "1m1s old"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, st, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.StatusResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Cache == nil || decoded.Cache.Chunks != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
}
