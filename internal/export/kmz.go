package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/treesurvey/internal/survey"
)

const (
	kmlNamespace  = "http://www.opengis.net/kml/2.2"
	kmlFileName   = "doc.kml"
	placemarkIcon = "http://maps.google.com/mapfiles/kml/paddle/wht-blank.png"
)

// zipModTime is stamped on every archive member so identical input gives
// identical bytes.
var zipModTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func styleID(h survey.Health) string {
	switch h {
	case survey.Healthy:
		return "health-healthy"
	case survey.Struggling:
		return "health-struggling"
	case survey.Dead:
		return "health-dead"
	default:
		return "health-unknown"
	}
}

// kmlColor converts #rrggbb into the opaque aabbggrr form KML expects.
func kmlColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "ffffffff"
	}
	return "ff" + hex[4:6] + hex[2:4] + hex[0:2]
}

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name       string         `xml:"name"`
	Styles     []kmlStyle     `xml:"Style"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlStyle struct {
	ID        string       `xml:"id,attr"`
	IconStyle kmlIconStyle `xml:"IconStyle"`
}

type kmlIconStyle struct {
	Color string  `xml:"color"`
	Scale float64 `xml:"scale"`
	Href  string  `xml:"Icon>href"`
}

type kmlPlacemark struct {
	Name        string   `xml:"name"`
	Description kmlCDATA `xml:"description"`
	When        string   `xml:"TimeStamp>when"`
	StyleURL    string   `xml:"styleUrl"`
	Point       kmlPoint `xml:"Point"`
}

type kmlCDATA struct {
	Text string `xml:",cdata"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

func placemark(e *survey.Entry) kmlPlacemark {
	var desc strings.Builder
	desc.WriteString("<table>")
	for _, kv := range [][2]string{
		{"ID", e.ID},
		{"Kesehatan", e.Health.Label()},
		{"Lokasi", e.Location},
		{"Tahun Tanam", fmt.Sprint(e.PlantingYear)},
		{"Pekerjaan", e.JobName},
		{"Pengawas", e.Supervisor},
		{"Vendor", e.Vendor},
		{"Tim", e.Team},
	} {
		fmt.Fprintf(&desc, "<tr><td>%s</td><td>%s</td></tr>", kv[0], xmlEscape(kv[1]))
	}
	desc.WriteString("</table>")

	return kmlPlacemark{
		Name:        fmt.Sprintf("%s (%d cm)", e.Species, e.HeightCm),
		Description: kmlCDATA{Text: desc.String()},
		When:        e.CapturedAt.Format(time.RFC3339),
		StyleURL:    "#" + styleID(e.Health),
		Point: kmlPoint{
			Coordinates: fmt.Sprintf("%s,%s,0",
				formatCoord(e.GPS.Longitude), formatCoord(e.GPS.Latitude)),
		},
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	// CDATA cannot contain its own terminator
	return strings.ReplaceAll(b.String(), "]]>", "]]&gt;")
}

// ToKML renders the KML document. Entries without GPS are skipped.
func ToKML(entries []*survey.Entry) ([]byte, int, error) {
	doc := kmlRoot{
		Xmlns:    kmlNamespace,
		Document: kmlDocument{Name: "Monitoring Tanaman"},
	}
	for _, h := range survey.AllHealth {
		doc.Document.Styles = append(doc.Document.Styles, kmlStyle{
			ID: styleID(h),
			IconStyle: kmlIconStyle{
				Color: kmlColor(h.Color()),
				Scale: 1.1,
				Href:  placemarkIcon,
			},
		})
	}
	for _, e := range entries {
		if e.HasGPS() {
			doc.Document.Placemarks = append(doc.Document.Placemarks, placemark(e))
		}
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, 0, failure(FormatKMZ, err, "encode kml")
	}
	return append([]byte(xml.Header), body...), len(doc.Document.Placemarks), nil
}

// ToKMZ zips the KML document as doc.kml. A snapshot without any GPS
// entries still produces a valid, empty document.
func ToKMZ(entries []*survey.Entry) ([]byte, error) {
	data, _, err := toKMZ(entries)
	return data, err
}

func toKMZ(entries []*survey.Entry) ([]byte, int, error) {
	kml, placemarks, err := ToKML(entries)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeMember(zw, kmlFileName, zip.Deflate, kml); err != nil {
		return nil, 0, failure(FormatKMZ, err, "write "+kmlFileName)
	}
	if err := zw.Close(); err != nil {
		return nil, 0, failure(FormatKMZ, err, "close archive")
	}
	return buf.Bytes(), placemarks, nil
}

func writeMember(zw *zip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: zipModTime,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
