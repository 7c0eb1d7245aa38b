package charset

import (
	"bytes"
	"strings"
	"testing"
)

// BenchmarkDecode_ShiftJIS benchmarks the first cascade step, the common
// case for registry files.
func BenchmarkDecode_ShiftJIS(b *testing.B) {
	raw := Encode(strings.Repeat("2024,分配P,分配,整備結果\n", 500)).Data

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(raw)
	}
}

// BenchmarkDecode_UTF8 benchmarks the fall-through to the UTF-8 branch,
// which first pays for a failed strict Shift_JIS decode.
func BenchmarkDecode_UTF8(b *testing.B) {
	raw := []byte(strings.Repeat("2024,分配P,分配,整備結果\n", 500))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(raw)
	}
}

// BenchmarkDecode_Detection benchmarks the worst case: bytes invalid in
// both Shift_JIS and UTF-8, forcing charset detection.
func BenchmarkDecode_Detection(b *testing.B) {
	raw := bytes.Repeat([]byte{0x82, 0xA0, 0xFF, 0xFE, 'a', 'b', ','}, 200)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(raw)
	}
}

// BenchmarkEncode benchmarks re-encoding edited text for save.
func BenchmarkEncode(b *testing.B) {
	text := strings.Repeat("2024,分配P,分配,整備結果\n", 500)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Encode(text)
	}
}
