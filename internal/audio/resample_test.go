package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestResamplePCM16Downsample(t *testing.T) {
	// 48 kHz -> 16 kHz keeps one of every three samples' worth of data.
	src := make([]byte, 48*2)
	for i := 0; i < 48; i++ {
		binary.LittleEndian.PutUint16(src[i*2:], uint16(int16(i*100)))
	}
	out := ResamplePCM16(src, 48000, 16000)
	if len(out) != 16*2 {
		t.Fatalf("len(out) = %d, want %d", len(out), 16*2)
	}
	first := int16(binary.LittleEndian.Uint16(out))
	if first != 0 {
		t.Fatalf("first sample = %d, want 0", first)
	}
}

func TestResamplePCM16SameRateIsIdentity(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	out := ResamplePCM16(src, 16000, 16000)
	if &out[0] != &src[0] {
		t.Fatalf("same-rate resample copied the buffer")
	}
}

func TestResamplePCM16Empty(t *testing.T) {
	if out := ResamplePCM16(nil, 24000, 16000); out != nil {
		t.Fatalf("ResamplePCM16(nil) = %v, want nil", out)
	}
}

func TestPlayDuration(t *testing.T) {
	// 32000 bytes of 16 kHz mono PCM16 is exactly one second.
	if got := PlayDuration(32000, 16000); got != time.Second {
		t.Fatalf("PlayDuration(32000, 16000) = %v, want 1s", got)
	}
	if got := PlayDuration(0, 16000); got != 0 {
		t.Fatalf("PlayDuration(0) = %v, want 0", got)
	}
}
