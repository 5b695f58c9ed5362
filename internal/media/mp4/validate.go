package mp4

import (
	"encoding/binary"
	"fmt"
)

// Info is what a structural pass over an MP4 container can state without a
// full demux: the brand and the movie-header duration.
type Info struct {
	MajorBrand string
	DurationMs int64
}

// Validate walks the top-level box structure of an ISO BMFF (MP4) file and
// fails on anything a renderer crash would typically leave behind: missing
// ftyp/moov/mdat boxes, truncated boxes, or garbage prefixes. It returns the
// movie duration read from the mvhd box.
func Validate(data []byte) (*Info, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("mp4 validate: file too short (%d bytes)", len(data))
	}

	info := &Info{}
	var haveFtyp, haveMoov, haveMdat bool

	offset := 0
	first := true
	for offset+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		boxType := string(data[offset+4 : offset+8])
		headerLen := 8
		if size == 1 {
			if offset+16 > len(data) {
				return nil, fmt.Errorf("mp4 validate: truncated 64-bit box header at offset %d", offset)
			}
			size64 := binary.BigEndian.Uint64(data[offset+8 : offset+16])
			if size64 > uint64(len(data)) {
				return nil, fmt.Errorf("mp4 validate: box %q overruns file (size=%d)", boxType, size64)
			}
			size = int(size64)
			headerLen = 16
		}
		if size == 0 {
			// Box extends to end of file.
			size = len(data) - offset
		}
		if size < headerLen || offset+size > len(data) {
			return nil, fmt.Errorf("mp4 validate: box %q at offset %d overruns file (size=%d)", boxType, offset, size)
		}

		switch boxType {
		case "ftyp":
			if size >= headerLen+4 {
				info.MajorBrand = string(data[offset+headerLen : offset+headerLen+4])
			}
			haveFtyp = true
		case "moov":
			haveMoov = true
			if ms, err := mvhdDurationMs(data[offset+headerLen : offset+size]); err == nil {
				info.DurationMs = ms
			}
		case "mdat":
			haveMdat = true
		}

		if first && boxType != "ftyp" {
			return nil, fmt.Errorf("mp4 validate: file does not start with an ftyp box (got %q)", boxType)
		}
		first = false
		offset += size
	}
	if offset != len(data) {
		return nil, fmt.Errorf("mp4 validate: %d trailing bytes after last box", len(data)-offset)
	}

	if !haveFtyp {
		return nil, fmt.Errorf("mp4 validate: missing ftyp box")
	}
	if !haveMoov {
		return nil, fmt.Errorf("mp4 validate: missing moov box")
	}
	if !haveMdat {
		return nil, fmt.Errorf("mp4 validate: missing mdat box")
	}
	return info, nil
}

func mvhdDurationMs(moov []byte) (int64, error) {
	offset := 0
	for offset+8 <= len(moov) {
		size := int(binary.BigEndian.Uint32(moov[offset : offset+4]))
		boxType := string(moov[offset+4 : offset+8])
		if size < 8 || offset+size > len(moov) {
			return 0, fmt.Errorf("mvhd: malformed child box %q", boxType)
		}
		if boxType == "mvhd" {
			body := moov[offset+8 : offset+size]
			if len(body) < 4 {
				return 0, fmt.Errorf("mvhd: short body")
			}
			version := body[0]
			if version == 1 {
				if len(body) < 4+8+8+4+8 {
					return 0, fmt.Errorf("mvhd v1: short body")
				}
				timescale := binary.BigEndian.Uint32(body[20:24])
				duration := binary.BigEndian.Uint64(body[24:32])
				if timescale == 0 {
					return 0, fmt.Errorf("mvhd: zero timescale")
				}
				return int64(duration * 1000 / uint64(timescale)), nil
			}
			if len(body) < 4+4+4+4+4 {
				return 0, fmt.Errorf("mvhd v0: short body")
			}
			timescale := binary.BigEndian.Uint32(body[12:16])
			duration := binary.BigEndian.Uint32(body[16:20])
			if timescale == 0 {
				return 0, fmt.Errorf("mvhd: zero timescale")
			}
			return int64(uint64(duration) * 1000 / uint64(timescale)), nil
		}
		offset += size
	}
	return 0, fmt.Errorf("mvhd: not found in moov")
}
