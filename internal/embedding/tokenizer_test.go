package embedding

import "testing"

func TestSimpleTokenizer(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids := tok.Tokenize("chest xray frontal")
	if len(ids) != ContextLength {
		t.Fatalf("length = %d", len(ids))
	}
	if ids[0] != bosToken {
		t.Errorf("ids[0] = %d", ids[0])
	}
	if ids[4] != eosToken {
		t.Errorf("ids[4] = %d, want EOS after 3 words", ids[4])
	}
	for _, id := range ids[1:4] {
		if id <= 0 || id >= vocabSize-2 {
			t.Errorf("token id out of range: %d", id)
		}
	}

	// Case-insensitive.
	upper := tok.Tokenize("CHEST XRAY FRONTAL")
	for i := range ids {
		if ids[i] != upper[i] {
			t.Fatalf("tokenization not case-insensitive at %d", i)
		}
	}
}

func TestSimpleTokenizerLongInput(t *testing.T) {
	tok := &SimpleTokenizer{}
	long := ""
	for i := 0; i < 200; i++ {
		long += "word "
	}
	ids := tok.Tokenize(long)
	if len(ids) != ContextLength {
		t.Fatalf("length = %d", len(ids))
	}
	if ids[ContextLength-1] != eosToken {
		t.Errorf("last token = %d, want EOS", ids[ContextLength-1])
	}
}
