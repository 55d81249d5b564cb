package survey

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// NotAvailable marks a value that could not be captured, such as
// coordinates without a GPS fix.
const NotAvailable = "N/A"

// TanggalLayout matches the id-ID locale short date-time used by the
// spreadsheet the upload endpoint appends to.
const TanggalLayout = "2/1/2006, 15.04.05"

// Field is one key of the upload payload.
type Field struct {
	Key   string
	Value any
}

// Fields keeps the upload payload in column order. It marshals to a JSON
// object with keys in that order.
type Fields []Field

// Get returns the value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PhotoDataURL encodes the photo as a base64 JPEG data URL.
func PhotoDataURL(photo []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(photo)
}

// Coordinates renders "lat,lon" or NotAvailable.
func (e *Entry) Coordinates() string {
	if e.GPS == nil {
		return NotAvailable
	}
	return strconv.FormatFloat(e.GPS.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(e.GPS.Longitude, 'f', -1, 64)
}

// FlatFields builds the flat payload sent to the spreadsheet endpoint.
func FlatFields(e *Entry) Fields {
	var x, y any = NotAvailable, NotAvailable
	if e.GPS != nil {
		x, y = e.GPS.Longitude, e.GPS.Latitude
	}

	return Fields{
		{"ID", e.ID},
		{"Tanggal", e.CapturedAt.Format(TanggalLayout)},
		{"Lokasi", e.Location},
		{"Pekerjaan", e.JobName},
		{"Tinggi", e.HeightCm},
		{"Koordinat", e.Coordinates()},
		{"X", x},
		{"Y", y},
		{"Tanaman", e.Species},
		{"Tahun Tanam", e.PlantingYear},
		{"Pengawas", e.Supervisor},
		{"Vendor", e.Vendor},
		{"Tim", e.Team},
		{"Kesehatan", e.Health.Label()},
		{"Gambar", PhotoDataURL(e.Photo)},
		{"Gambar_Nama_File", "monitoring_tanaman/" + e.PhotoFileName()},
	}
}
