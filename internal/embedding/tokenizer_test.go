package embedding

import (
	"context"
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if len(ids) != 10 {
		t.Errorf("len(ids)=%d", len(ids))
	}
	if ids[0] != 101 {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != 102 {
		t.Errorf("expected SEP 102 after two words, got %d", ids[3])
	}
	if attn[0] != 1 || attn[3] != 1 || attn[4] != 0 {
		t.Errorf("unexpected attention mask %v", attn)
	}
}

func TestWords(t *testing.T) {
	got := Words("  What is Machine-Learning?  ")
	want := []string{"what", "is", "machine", "learning"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
	if len(Words("")) != 0 {
		t.Error("empty string should have no words")
	}
}

func TestContentWords(t *testing.T) {
	got := ContentWords("What is machine learning?")
	want := []string{"machine", "learning"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ContentWords() = %v, want %v", got, want)
	}
	if got := ContentWords("what is it"); len(got) != 3 {
		t.Errorf("all-stopword text should keep every word, got %v", got)
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	// These hashes have the top bit set, so a signed 32-bit int would turn them negative.
	tests := []struct {
		word   string
		hash   uint32
		bucket int
	}{
		{"photosynthesis", 2864151970, 418},
		{"compound", 3695626667, 427},
		{"orchestration", 2478967361, 65},
	}
	for _, tt := range tests {
		if got := HashString(tt.word); got != tt.hash {
			t.Errorf("HashString(%q) = %d, want %d", tt.word, got, tt.hash)
		}
		if int32(HashString(tt.word)) >= 0 {
			t.Errorf("HashString(%q) should not fit a signed 32-bit int", tt.word)
		}
	}

	e := NewHashingEmbedder(512)
	for _, tt := range tests {
		v, err := e.Embed(context.Background(), tt.word)
		if err != nil {
			t.Fatal(err)
		}
		if v[tt.bucket] != 1 {
			t.Errorf("Embed(%q): bucket %d = %v, want 1", tt.word, tt.bucket, v[tt.bucket])
		}
	}
}
