package exif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/treesurvey/internal/geo"
)

// TIFF field types
const (
	typeByte     uint16 = 1
	typeASCII    uint16 = 2
	typeShort    uint16 = 3
	typeLong     uint16 = 4
	typeRational uint16 = 5
)

// IFD0 tags
const (
	tagImageDescription uint16 = 0x010E
	tagSoftware         uint16 = 0x0131
	tagDateTime         uint16 = 0x0132
	tagArtist           uint16 = 0x013B
	tagGPSIFD           uint16 = 0x8825
)

// GPS IFD tags
const (
	tagGPSVersionID          uint16 = 0x0000
	tagGPSLatitudeRef        uint16 = 0x0001
	tagGPSLatitude           uint16 = 0x0002
	tagGPSLongitudeRef       uint16 = 0x0003
	tagGPSLongitude          uint16 = 0x0004
	tagGPSMapDatum           uint16 = 0x0012
	tagGPSHPositioningError  uint16 = 0x001F
	secondsDenominator              = 1_000_000
	accuracyDenominator             = 100
	dateTimeLayout                  = "2006:01:02 15:04:05"
	tiffMagic                uint16 = 42
	ifd0Offset                      = 8
	ifdEntrySize                    = 12
)

// byteOrder is the order used for everything this package writes.
var byteOrder = binary.BigEndian

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte // encoded in the block's byte order
}

func asciiEntry(tag uint16, s string) ifdEntry {
	v := append([]byte(strings.ReplaceAll(s, "\x00", "")), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(v)), value: v} //nolint:gosec // bounded by segment size check
}

func longEntry(tag uint16, v uint32) ifdEntry {
	return ifdEntry{tag: tag, typ: typeLong, count: 1, value: byteOrder.AppendUint32(nil, v)}
}

func rationalEntry(tag uint16, pairs ...[2]uint32) ifdEntry {
	v := make([]byte, 0, 8*len(pairs))
	for _, p := range pairs {
		v = byteOrder.AppendUint32(v, p[0])
		v = byteOrder.AppendUint32(v, p[1])
	}
	return ifdEntry{tag: tag, typ: typeRational, count: uint32(len(pairs)), value: v} //nolint:gosec // at most three pairs
}

// encodeIFD lays out one IFD starting at offset with its out-of-line values
// directly after it. The next-IFD link is always zero.
func encodeIFD(entries []ifdEntry, offset int) []byte {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b ifdEntry) int { return int(a.tag) - int(b.tag) })

	dataOffset := offset + 2 + ifdEntrySize*len(sorted) + 4
	var head, tail bytes.Buffer

	head.Write(byteOrder.AppendUint16(nil, uint16(len(sorted)))) //nolint:gosec // a handful of entries
	for _, e := range sorted {
		head.Write(byteOrder.AppendUint16(nil, e.tag))
		head.Write(byteOrder.AppendUint16(nil, e.typ))
		head.Write(byteOrder.AppendUint32(nil, e.count))
		if len(e.value) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.value)
			head.Write(inline)
			continue
		}
		head.Write(byteOrder.AppendUint32(nil, uint32(dataOffset+tail.Len()))) //nolint:gosec // block stays below 64 KiB
		tail.Write(e.value)
		if tail.Len()%2 == 1 {
			tail.WriteByte(0) // values start on word boundaries
		}
	}
	head.Write(byteOrder.AppendUint32(nil, 0))

	return append(head.Bytes(), tail.Bytes()...)
}

// toDMS splits an absolute coordinate into whole degrees, whole minutes and
// seconds scaled by secondsDenominator, carrying rounding overflow upward.
func toDMS(value float64) (deg, minutes, secScaled uint32) {
	abs := math.Abs(value)
	d := math.Floor(abs)
	minFloat := (abs - d) * 60
	m := math.Floor(minFloat)
	s := math.Round((minFloat - m) * 60 * secondsDenominator)

	deg, minutes, secScaled = uint32(d), uint32(m), uint32(s)
	if secScaled >= 60*secondsDenominator {
		secScaled -= 60 * secondsDenominator
		minutes++
	}
	if minutes >= 60 {
		minutes -= 60
		deg++
	}
	return deg, minutes, secScaled
}

func gpsEntries(fix geo.Fix) []ifdEntry {
	latRef, lonRef := "N", "E"
	if fix.Latitude < 0 {
		latRef = "S"
	}
	if fix.Longitude < 0 {
		lonRef = "W"
	}

	latD, latM, latS := toDMS(fix.Latitude)
	lonD, lonM, lonS := toDMS(fix.Longitude)

	accuracy := math.Round(math.Min(fix.AccuracyMeters*accuracyDenominator, math.MaxUint32))

	return []ifdEntry{
		{tag: tagGPSVersionID, typ: typeByte, count: 4, value: []byte{2, 3, 0, 0}},
		asciiEntry(tagGPSLatitudeRef, latRef),
		rationalEntry(tagGPSLatitude, [2]uint32{latD, 1}, [2]uint32{latM, 1}, [2]uint32{latS, secondsDenominator}),
		asciiEntry(tagGPSLongitudeRef, lonRef),
		rationalEntry(tagGPSLongitude, [2]uint32{lonD, 1}, [2]uint32{lonM, 1}, [2]uint32{lonS, secondsDenominator}),
		asciiEntry(tagGPSMapDatum, "WGS-84"),
		rationalEntry(tagGPSHPositioningError, [2]uint32{uint32(accuracy), accuracyDenominator}),
	}
}

// buildTIFF encodes meta as a big-endian TIFF block: header, IFD0 and an
// optional GPS IFD. Output depends only on meta.
func buildTIFF(meta Metadata) ([]byte, error) {
	ifd0 := []ifdEntry{
		asciiEntry(tagImageDescription, encodeDescription(meta)),
		asciiEntry(tagSoftware, Software),
	}
	if !meta.CapturedAt.IsZero() {
		ifd0 = append(ifd0, asciiEntry(tagDateTime, meta.CapturedAt.Format(dateTimeLayout)))
	}
	if meta.Supervisor != "" {
		ifd0 = append(ifd0, asciiEntry(tagArtist, meta.Supervisor))
	}

	var gpsBlock []byte
	if meta.GPS != nil {
		// the pointer width is fixed, so a placeholder pass gives the final IFD0 size
		ifd0 = append(ifd0, longEntry(tagGPSIFD, 0))
		gpsOffset := ifd0Offset + len(encodeIFD(ifd0, ifd0Offset))
		ifd0[len(ifd0)-1] = longEntry(tagGPSIFD, uint32(gpsOffset)) //nolint:gosec // block stays below 64 KiB
		gpsBlock = encodeIFD(gpsEntries(*meta.GPS), gpsOffset)
	}

	var out bytes.Buffer
	out.WriteString("MM")
	out.Write(byteOrder.AppendUint16(nil, tiffMagic))
	out.Write(byteOrder.AppendUint32(nil, ifd0Offset))
	out.Write(encodeIFD(ifd0, ifd0Offset))
	out.Write(gpsBlock)

	if out.Len()+len(exifHeader) > maxSegmentPayload {
		return nil, fmt.Errorf("metadata block of %d bytes does not fit in one segment", out.Len())
	}
	return out.Bytes(), nil
}

type rawEntry struct {
	typ   uint16
	count uint32
	value []byte
}

func typeSize(typ uint16) uint64 {
	switch typ {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational:
		return 8
	default:
		return 0
	}
}

// readIFD reads the entries of the IFD at offset with bounds checks on
// every access. Entries of unknown type are skipped.
func readIFD(block []byte, order binary.ByteOrder, offset uint32) (map[uint16]rawEntry, error) {
	size := uint64(len(block))
	if uint64(offset)+2 > size {
		return nil, fmt.Errorf("IFD offset %d outside block of %d bytes", offset, size)
	}
	n := uint64(order.Uint16(block[offset:]))
	if uint64(offset)+2+n*ifdEntrySize > size {
		return nil, fmt.Errorf("IFD at %d with %d entries overruns block", offset, n)
	}

	entries := make(map[uint16]rawEntry, n)
	for i := range n {
		e := block[uint64(offset)+2+i*ifdEntrySize:]
		tag := order.Uint16(e)
		typ := order.Uint16(e[2:])
		count := order.Uint32(e[4:])

		width := typeSize(typ)
		if width == 0 {
			continue
		}
		length := width * uint64(count)

		var value []byte
		if length <= 4 {
			value = e[8 : 8+length]
		} else {
			valueOffset := uint64(order.Uint32(e[8:]))
			if valueOffset+length > size {
				return nil, fmt.Errorf("tag 0x%04X value at %d overruns block", tag, valueOffset)
			}
			value = block[valueOffset : valueOffset+length]
		}
		entries[tag] = rawEntry{typ: typ, count: count, value: value}
	}

	return entries, nil
}

func (e rawEntry) ascii() string {
	return strings.TrimRight(string(e.value), "\x00")
}

func (e rawEntry) rationals(order binary.ByteOrder) ([]float64, error) {
	if e.typ != typeRational {
		return nil, fmt.Errorf("expected RATIONAL, found type %d", e.typ)
	}
	out := make([]float64, e.count)
	for i := range out {
		num := order.Uint32(e.value[8*i:])
		den := order.Uint32(e.value[8*i+4:])
		if den == 0 {
			return nil, fmt.Errorf("zero denominator in rational %d", i)
		}
		out[i] = float64(num) / float64(den)
	}
	return out, nil
}

func readCoordinate(gps map[uint16]rawEntry, order binary.ByteOrder, valueTag, refTag uint16, negative string) (float64, error) {
	entry, ok := gps[valueTag]
	if !ok {
		return 0, fmt.Errorf("GPS tag 0x%04X missing", valueTag)
	}
	parts, err := entry.rationals(order)
	if err != nil {
		return 0, err
	}
	if len(parts) != 3 {
		return 0, fmt.Errorf("GPS tag 0x%04X has %d components, want 3", valueTag, len(parts))
	}

	value := parts[0] + parts[1]/60 + parts[2]/3600
	if ref, ok := gps[refTag]; ok && ref.ascii() == negative {
		value = -value
	}
	return value, nil
}

// parseTIFF decodes a TIFF block in either byte order.
func parseTIFF(block []byte) (*Metadata, error) {
	if len(block) < 8 {
		return nil, fmt.Errorf("TIFF header truncated")
	}

	var order binary.ByteOrder
	switch string(block[:2]) {
	case "MM":
		order = binary.BigEndian
	case "II":
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("unknown byte order %q", block[:2])
	}
	if order.Uint16(block[2:]) != tiffMagic {
		return nil, fmt.Errorf("bad TIFF magic")
	}

	ifd0, err := readIFD(block, order, order.Uint32(block[4:]))
	if err != nil {
		return nil, err
	}

	meta := &Metadata{}
	if desc, ok := ifd0[tagImageDescription]; ok {
		if err := decodeDescription(desc.ascii(), meta); err != nil {
			return nil, err
		}
	}
	if artist, ok := ifd0[tagArtist]; ok && meta.Supervisor == "" {
		meta.Supervisor = artist.ascii()
	}
	if dt, ok := ifd0[tagDateTime]; ok {
		if t, err := time.ParseInLocation(dateTimeLayout, dt.ascii(), time.Local); err == nil {
			meta.CapturedAt = t
		}
	}

	pointer, ok := ifd0[tagGPSIFD]
	if !ok || pointer.typ != typeLong {
		return meta, nil
	}

	gps, err := readIFD(block, order, order.Uint32(pointer.value))
	if err != nil {
		return nil, err
	}

	fix := geo.Fix{}
	if fix.Latitude, err = readCoordinate(gps, order, tagGPSLatitude, tagGPSLatitudeRef, "S"); err != nil {
		return nil, err
	}
	if fix.Longitude, err = readCoordinate(gps, order, tagGPSLongitude, tagGPSLongitudeRef, "W"); err != nil {
		return nil, err
	}
	if accEntry, ok := gps[tagGPSHPositioningError]; ok {
		if acc, err := accEntry.rationals(order); err == nil && len(acc) == 1 {
			fix.AccuracyMeters = acc[0]
		}
	}
	meta.GPS = &fix

	return meta, nil
}
