package providers

import "encoding/binary"

// Audio defaults shared by the speech adapters.
const (
	defaultSampleRate = 16000
	defaultChannels   = 1
	defaultBitDepth   = 16

	wavHeaderSize = 44
)

// WrapPCMAsWAV wraps raw little-endian signed PCM audio in a WAV
// header. File-upload APIs such as Whisper reject bare PCM, so the
// adapters wrap it before sending. Zero sampleRate, channels, or
// bitsPerSample fall back to the adapter defaults above.
func WrapPCMAsWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if channels <= 0 {
		channels = defaultChannels
	}
	if bitsPerSample <= 0 {
		bitsPerSample = defaultBitDepth
	}

	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(wav[0:4], "RIFF")
	le.PutUint32(wav[4:8], uint32(wavHeaderSize-8+len(pcm)))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	le.PutUint32(wav[16:20], 16) // PCM fmt chunk size
	le.PutUint16(wav[20:22], 1)  // linear PCM
	le.PutUint16(wav[22:24], uint16(channels))
	le.PutUint32(wav[24:28], uint32(sampleRate))
	le.PutUint32(wav[28:32], uint32(byteRate))
	le.PutUint16(wav[32:34], uint16(blockAlign))
	le.PutUint16(wav[34:36], uint16(bitsPerSample))

	copy(wav[36:40], "data")
	le.PutUint32(wav[40:44], uint32(len(pcm)))

	return append(wav, pcm...)
}
