package exif

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
	markerAPP1   = 0xE1
	markerTEM    = 0x01

	// maxSegmentPayload is the largest payload a 16-bit segment length allows
	maxSegmentPayload = 0xFFFF - 2

	exifHeader = "Exif\x00\x00"
)

func isJPEG(data []byte) bool {
	return len(data) >= 4 && data[0] == markerPrefix && data[1] == markerSOI
}

// isStandalone reports markers that carry no length field
func isStandalone(marker byte) bool {
	return marker == markerTEM || (marker >= 0xD0 && marker <= 0xD7)
}

// splitSegments walks the marker segments between SOI and SOS. Each
// returned segment starts with 0xFF and its marker; fill bytes are dropped.
// scan holds everything from the SOS marker to the end of the file.
func splitSegments(data []byte) (segments [][]byte, scan []byte, err error) {
	pos := 2
	for pos < len(data) {
		if data[pos] != markerPrefix {
			return nil, nil, fmt.Errorf("expected marker at offset %d, found 0x%02X", pos, data[pos])
		}
		for pos < len(data) && data[pos] == markerPrefix {
			pos++
		}
		if pos >= len(data) {
			return nil, nil, fmt.Errorf("truncated marker at offset %d", pos)
		}

		marker := data[pos]
		pos++
		segStart := pos - 2

		switch {
		case marker == markerSOS:
			return segments, data[segStart:], nil
		case marker == markerEOI:
			return nil, nil, fmt.Errorf("end of image before start of scan")
		case isStandalone(marker):
			segments = append(segments, data[segStart:pos])
			continue
		}

		if pos+2 > len(data) {
			return nil, nil, fmt.Errorf("truncated length for marker 0x%02X at offset %d", marker, segStart)
		}
		length := int(binary.BigEndian.Uint16(data[pos:]))
		if length < 2 || pos+length > len(data) {
			return nil, nil, fmt.Errorf("segment 0x%02X at offset %d declares %d bytes, %d available", marker, segStart, length, len(data)-pos)
		}
		pos += length
		segments = append(segments, data[segStart:pos])
	}

	return nil, nil, fmt.Errorf("missing start of scan")
}

func isExifSegment(seg []byte) bool {
	return len(seg) >= 4+len(exifHeader) &&
		seg[1] == markerAPP1 &&
		string(seg[4:4+len(exifHeader)]) == exifHeader
}

// encodeSegment frames payload as a marker segment with a computed length.
func encodeSegment(marker byte, payload []byte) ([]byte, error) {
	if len(payload) > maxSegmentPayload {
		return nil, fmt.Errorf("segment payload of %d bytes exceeds the %d byte limit", len(payload), maxSegmentPayload)
	}
	seg := make([]byte, 4, 4+len(payload))
	seg[0] = markerPrefix
	seg[1] = marker
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2)) //nolint:gosec // bounded above
	return append(seg, payload...), nil
}

// assemble rebuilds the file into a fresh buffer. The first Exif segment
// is replaced in place and later ones are dropped; without one, app1 goes
// directly after SOI.
func assemble(segments [][]byte, scan, app1 []byte, sizeHint int) []byte {
	var out bytes.Buffer
	out.Grow(sizeHint + len(app1))
	out.Write([]byte{markerPrefix, markerSOI})

	written := !hasExifSegment(segments)
	if written {
		out.Write(app1)
	}

	for _, seg := range segments {
		if isExifSegment(seg) {
			if !written {
				out.Write(app1)
				written = true
			}
			continue
		}
		out.Write(seg)
	}

	out.Write(scan)
	return out.Bytes()
}

func hasExifSegment(segments [][]byte) bool {
	for _, seg := range segments {
		if isExifSegment(seg) {
			return true
		}
	}
	return false
}
