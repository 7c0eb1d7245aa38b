package charset

import (
	"bytes"
	"testing"
)

func TestEncodeShiftJIS(t *testing.T) {
	text := "年度,分配PID\n2020,A001\n"

	got := Encode(text)

	if got.Fallback {
		t.Fatal("Fallback = true, want Shift_JIS")
	}
	if got.Encoding != LabelShiftJIS {
		t.Fatalf("Encoding = %q, want %q", got.Encoding, LabelShiftJIS)
	}
	if want := sjisBytes(t, text); !bytes.Equal(got.Data, want) {
		t.Errorf("Data = % x, want % x", got.Data, want)
	}
}

func TestEncodeFallback(t *testing.T) {
	// The flag emoji has no Shift_JIS representation.
	text := "年度,メモ\n2020,🎌\n"

	got := Encode(text)

	if !got.Fallback {
		t.Fatal("Fallback = false, want true")
	}
	if got.Encoding != LabelUTF8BOM {
		t.Fatalf("Encoding = %q, want %q", got.Encoding, LabelUTF8BOM)
	}
	if !bytes.HasPrefix(got.Data, utf8BOM) {
		t.Fatalf("Data = % x, want byte-order mark prefix", got.Data[:3])
	}
	if string(got.Data[len(utf8BOM):]) != text {
		t.Errorf("payload = %q, want %q", got.Data[len(utf8BOM):], text)
	}
}

func TestDecodeRecognizesEncodeFallback(t *testing.T) {
	text := "2020,🎌,テスト"

	dec := Decode(Encode(text).Data)

	if dec.Encoding != LabelUTF8BOM {
		t.Fatalf("Encoding = %q, want %q", dec.Encoding, LabelUTF8BOM)
	}
	if dec.Text != text {
		t.Errorf("Text = %q, want %q", dec.Text, text)
	}
	if dec.Lossy {
		t.Error("Lossy = true, want false")
	}
}
