package encoding

import "testing"

func TestRLE_Bitmap(t *testing.T) {
	in := make([]uint16, 0, 64)
	in = append(in, 1, 1, 1, 0, 0, 1)
	for i := 0; i < 50; i++ {
		in = append(in, 0)
	}
	in = append(in, 1, 0, 0, 1)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_RejectsWrongSize(t *testing.T) {
	enc := EncodeRLE([]uint16{0, 0, 0, 1})
	if _, err := DecodeRLE(enc, 3); err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, err := DecodeRLE(enc, 5); err == nil {
		t.Fatalf("expected short payload error")
	}
	if _, err := DecodeRLE("not base64!", 4); err == nil {
		t.Fatalf("expected base64 error")
	}
}

func TestRLE_Empty(t *testing.T) {
	out, err := DecodeRLE(EncodeRLE(nil), 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty: out=%v err=%v", out, err)
	}
}
