package providers

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWrapPCMAsWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := WrapPCMAsWAV(pcm, 24000, 1, 16)

	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("length = %d, want %d", len(wav), wavHeaderSize+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE magic")
	}

	le := binary.LittleEndian
	if got := le.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if got := le.Uint32(wav[28:32]); got != 24000*2 {
		t.Errorf("byte rate = %d, want %d", got, 24000*2)
	}
	if got := le.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[wavHeaderSize:], pcm) {
		t.Error("payload not preserved")
	}
}

func TestWrapPCMAsWAV_ZeroParamsUseDefaults(t *testing.T) {
	wav := WrapPCMAsWAV([]byte{0x00, 0x00}, 0, 0, 0)

	le := binary.LittleEndian
	if got := le.Uint32(wav[24:28]); got != defaultSampleRate {
		t.Errorf("sample rate = %d, want %d", got, defaultSampleRate)
	}
	if got := le.Uint16(wav[22:24]); got != defaultChannels {
		t.Errorf("channels = %d, want %d", got, defaultChannels)
	}
	if got := le.Uint16(wav[34:36]); got != defaultBitDepth {
		t.Errorf("bit depth = %d, want %d", got, defaultBitDepth)
	}
}
