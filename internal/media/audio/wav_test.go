package audio

import (
	"testing"
)

func TestDurationDerivedFromSampleBytes(t *testing.T) {
	// 24kHz mono 16-bit: 48000 bytes per second.
	for _, tc := range []struct {
		bytes  int
		wantMs int64
	}{
		{48000, 1000},
		{24000, 500},
		{48000 * 3, 3000},
		{1200, 25},
		{0, 0},
	} {
		got, err := DurationMs(tc.bytes, 24000, 1, 16)
		if err != nil {
			t.Fatalf("DurationMs(%d): %v", tc.bytes, err)
		}
		if got != tc.wantMs {
			t.Fatalf("DurationMs(%d) = %d, want %d", tc.bytes, got, tc.wantMs)
		}
	}
}

func TestDurationRejectsInvalidParams(t *testing.T) {
	if _, err := DurationMs(100, 0, 1, 16); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := DurationMs(100, 24000, 1, 12); err == nil {
		t.Fatal("expected error for non-byte-aligned bit depth")
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	pcm := make([]byte, 96000) // 2s of 24kHz mono 16-bit
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	wav, err := EncodeWAV(pcm, 24000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Fatalf("unexpected format: %+v", info)
	}
	if info.DataBytes != len(pcm) {
		t.Fatalf("data bytes = %d, want %d", info.DataBytes, len(pcm))
	}
	if info.DurationMs != 2000 {
		t.Fatalf("duration = %dms, want 2000ms", info.DurationMs)
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	if _, err := ParseWAV([]byte("RIFFxxxxJUNK")); err == nil {
		t.Fatal("expected parse failure")
	}
	if _, err := ParseWAV(nil); err == nil {
		t.Fatal("expected parse failure on empty input")
	}
}
