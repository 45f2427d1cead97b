package audio

import (
	"encoding/binary"
	"time"
)

// ResamplePCM16 converts mono PCM16LE audio from one sample rate to
// another using linear interpolation. Provider output arrives at 24 kHz
// or 48 kHz; playback and the speaking-window math both assume 16 kHz.
func ResamplePCM16(pcm []byte, fromRate, toRate int) []byte {
	if fromRate <= 0 || toRate <= 0 || fromRate == toRate {
		return pcm
	}
	srcLen := len(pcm) / 2
	if srcLen == 0 {
		return nil
	}
	dstLen := int(int64(srcLen) * int64(toRate) / int64(fromRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]byte, dstLen*2)
	ratio := float64(fromRate) / float64(toRate)
	for i := 0; i < dstLen; i++ {
		pos := float64(i) * ratio
		lo := int(pos)
		hi := lo + 1
		if hi >= srcLen {
			hi = srcLen - 1
		}
		frac := pos - float64(lo)

		a := int16(binary.LittleEndian.Uint16(pcm[lo*2:]))
		b := int16(binary.LittleEndian.Uint16(pcm[hi*2:]))
		sample := float64(a)*(1-frac) + float64(b)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample)))
	}
	return out
}

// PlayDuration estimates how long a mono PCM16 buffer takes to play.
func PlayDuration(byteLen, sampleRate int) time.Duration {
	if byteLen <= 0 || sampleRate <= 0 {
		return 0
	}
	bytesPerSecond := sampleRate * 2
	return time.Duration(byteLen) * time.Second / time.Duration(bytesPerSecond)
}
