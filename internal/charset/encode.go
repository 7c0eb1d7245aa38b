package charset

import "golang.org/x/text/encoding/japanese"

// EncodeResult is the outcome of an Encode call.
type EncodeResult struct {
	Data     []byte
	Encoding string
	Fallback bool // Shift_JIS could not represent the text
}

// Encode serializes registry text to bytes. Shift_JIS is attempted first;
// unlike decoders, x/text encoders do fail on unrepresentable runes, and
// any such failure switches to UTF-8 prefixed with a byte-order mark so
// downstream readers (including Decode) can recognize the fallback. The
// fallback widens the byte representation but never loses text, so Encode
// itself never fails.
func Encode(text string) EncodeResult {
	data, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(text))
	if err == nil {
		return EncodeResult{Data: data, Encoding: LabelShiftJIS}
	}

	buf := make([]byte, 0, len(utf8BOM)+len(text))
	buf = append(buf, utf8BOM...)
	buf = append(buf, text...)
	return EncodeResult{Data: buf, Encoding: LabelUTF8BOM, Fallback: true}
}
