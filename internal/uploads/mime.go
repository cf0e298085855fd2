package uploads

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Group is a family of content types that share handling downstream.
type Group string

const (
	GroupImages Group = "images"
	GroupPDFs   Group = "pdfs"
	GroupCAD    Group = "cad"
	GroupOffice Group = "office"
)

const genericMimeType = "application/octet-stream"

var groupNames = map[Group]string{
	GroupImages: "images",
	GroupPDFs:   "PDFs",
	GroupCAD:    "CAD drawings",
	GroupOffice: "office documents",
}

var groupTypes = map[Group][]string{
	GroupImages: {"image/jpeg", "image/png", "image/gif", "image/webp", "image/tiff", "image/bmp"},
	GroupPDFs:   {"application/pdf"},
	GroupCAD: {
		"application/dwg", "application/acad", "application/x-acad", "application/autocad_dwg",
		"image/vnd.dwg", "image/x-dwg",
		"application/dxf", "application/x-dxf", "image/vnd.dxf", "image/x-dxf",
		"model/vnd.dwf", "application/x-step", "model/step",
	},
	GroupOffice: {
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	},
}

// cadExtensions identify drawing formats by name alone. Browsers report these
// as octet-stream, text/plain or worse.
var cadExtensions = map[string]string{
	".dwg":  "application/dwg",
	".dxf":  "application/dxf",
	".dwf":  "model/vnd.dwf",
	".ifc":  "application/x-step",
	".step": "model/step",
	".stp":  "model/step",
	".rvt":  "application/vnd.autodesk.revit",
	".skp":  "application/vnd.sketchup.skp",
	".3dm":  "model/vnd.3dm",
}

// extensionTypes resolves a content type when the transport did not supply a useful one.
var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".csv":  "text/csv",
}

var groupByType = buildGroupByType()

func buildGroupByType() map[string]Group {
	out := make(map[string]Group)
	for group, types := range groupTypes {
		for _, t := range types {
			out[t] = group
		}
	}
	return out
}

// GroupOf reports which group a normalized content type belongs to.
func GroupOf(mimeType string) (Group, bool) {
	g, ok := groupByType[mimeType]
	return g, ok
}

// Extension returns the lower-cased extension of name, dot included.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}

// ResolveMimeType picks the content type to record for an upload: the declared
// type when it is specific, else the extension table, else a sniff of the
// leading bytes.
func ResolveMimeType(declared, fileName string, head []byte) string {
	if normalized, err := normalizeMimeType(declared); err == nil && !isGeneric(normalized) {
		return normalized
	}
	ext := Extension(fileName)
	if t, ok := cadExtensions[ext]; ok {
		return t
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if len(head) > 0 {
		if sniffed, err := normalizeMimeType(mimetype.Detect(head).String()); err == nil {
			return sniffed
		}
	}
	return genericMimeType
}

func normalizeMimeType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("mime type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("mime type invalid: %w", err)
	}
	if mediaType == "" {
		return "", fmt.Errorf("mime type missing")
	}
	return strings.ToLower(mediaType), nil
}

func isGeneric(mimeType string) bool {
	switch mimeType {
	case genericMimeType, "binary/octet-stream", "application/x-unknown", "application/unknown":
		return true
	}
	return false
}

func describeGroups(groups []Group) string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		if name, ok := groupNames[g]; ok {
			names = append(names, name)
		}
	}
	switch len(names) {
	case 0:
		return "the approved file types"
	case 1:
		return names[0]
	case 2:
		return fmt.Sprintf("%s or %s", names[0], names[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
	}
}

func sortedExtensions(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for ext := range m {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
