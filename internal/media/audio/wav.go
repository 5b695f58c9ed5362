package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Info describes a PCM stream. DurationMs is always derived from the raw
// sample byte count; external duration fields are never trusted.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int
	DurationMs int64
}

// DurationMs computes playback duration from raw sample bytes.
func DurationMs(dataBytes, sampleRate, channels, bitDepth int) (int64, error) {
	if sampleRate <= 0 || channels <= 0 || bitDepth <= 0 || bitDepth%8 != 0 {
		return 0, fmt.Errorf("audio duration: invalid pcm params rate=%d channels=%d bits=%d", sampleRate, channels, bitDepth)
	}
	bytesPerSecond := sampleRate * channels * (bitDepth / 8)
	return int64(dataBytes) * 1000 / int64(bytesPerSecond), nil
}

// EncodeWAV wraps raw little-endian PCM samples in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels, bitDepth int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 || bitDepth <= 0 || bitDepth%8 != 0 {
		return nil, fmt.Errorf("encode wav: invalid pcm params rate=%d channels=%d bits=%d", sampleRate, channels, bitDepth)
	}
	blockAlign := channels * bitDepth / 8
	byteRate := sampleRate * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// ParseWAV reads the fmt and data chunks of a RIFF/WAVE file and derives the
// stream duration from the data chunk's byte length.
func ParseWAV(data []byte) (Info, error) {
	var info Info
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, fmt.Errorf("parse wav: not a RIFF/WAVE stream")
	}

	offset := 12
	haveFmt := false
	haveData := false
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkLen > len(data) {
			return info, fmt.Errorf("parse wav: truncated %q chunk", chunkID)
		}
		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return info, fmt.Errorf("parse wav: short fmt chunk (%d bytes)", chunkLen)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			info.DataBytes = chunkLen
			haveData = true
		}
		// Chunks are word-aligned.
		offset = body + chunkLen + chunkLen%2
	}

	if !haveFmt {
		return info, fmt.Errorf("parse wav: missing fmt chunk")
	}
	if !haveData {
		return info, fmt.Errorf("parse wav: missing data chunk")
	}
	dur, err := DurationMs(info.DataBytes, info.SampleRate, info.Channels, info.BitDepth)
	if err != nil {
		return info, err
	}
	info.DurationMs = dur
	return info, nil
}
