// Package uploads decides whether an incoming file may enter the pipeline.
package uploads

import (
	"strings"

	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
)

// HeadSize is how many leading bytes callers should pass for content sniffing.
const HeadSize = 3072

// FileMeta is everything the validator looks at. It never sees the body beyond Head.
type FileMeta struct {
	FileName     string
	DeclaredType string
	Size         int64
	Head         []byte
}

// Decision is the outcome of an accepted file.
type Decision struct {
	MimeType  string
	Group     Group
	Extension string
	// ByExtensionOnly marks a drawing whose declared type did not name a drawing format.
	ByExtensionOnly bool
}

// Policy is an allow-list plus a size ceiling for one entry point.
type Policy struct {
	name             string
	maxBytes         int64
	groups           []Group
	cadByExtension   bool
	allowedGroupsSet map[Group]struct{}
}

// DocumentPolicy governs general project document uploads.
func DocumentPolicy(maxBytes int64) Policy {
	return newPolicy("document", maxBytes, true, GroupPDFs, GroupImages, GroupCAD, GroupOffice)
}

// BlueprintPolicy governs inputs to 3D conversion.
func BlueprintPolicy(maxBytes int64) Policy {
	return newPolicy("blueprint", maxBytes, false, GroupImages, GroupPDFs)
}

func newPolicy(name string, maxBytes int64, cadByExtension bool, groups ...Group) Policy {
	set := make(map[Group]struct{}, len(groups))
	for _, g := range groups {
		set[g] = struct{}{}
	}
	return Policy{
		name:             name,
		maxBytes:         maxBytes,
		groups:           groups,
		cadByExtension:   cadByExtension,
		allowedGroupsSet: set,
	}
}

func (p Policy) Name() string {
	return p.name
}

func (p Policy) MaxBytes() int64 {
	return p.maxBytes
}

// Validate accepts or rejects a file. It has no side effects.
func (p Policy) Validate(meta FileMeta) (Decision, error) {
	if strings.TrimSpace(meta.FileName) == "" {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "file name is required").
			WithDetails(map[string]any{"field": "file"})
	}
	if meta.Size <= 0 {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "file is empty").
			WithDetails(map[string]any{"field": "file"})
	}
	if meta.Size > p.maxBytes {
		return Decision{}, pkgerrors.New(pkgerrors.CodeFileTooLarge, "file exceeds the upload size limit").
			WithDetails(map[string]any{"size_bytes": meta.Size, "max_bytes": p.maxBytes, "policy": p.name})
	}

	ext := Extension(meta.FileName)
	resolved := ResolveMimeType(meta.DeclaredType, meta.FileName, meta.Head)

	// Drawing formats are recognised by name first; their declared types are unreliable.
	if p.cadByExtension {
		if extType, ok := cadExtensions[ext]; ok {
			mimeType := extType
			if g, ok := GroupOf(resolved); ok && g == GroupCAD {
				mimeType = resolved
			}
			return Decision{MimeType: mimeType, Group: GroupCAD, Extension: ext, ByExtensionOnly: !declaresCAD(meta.DeclaredType)}, nil
		}
	}

	if g, ok := GroupOf(resolved); ok {
		if _, allowed := p.allowedGroupsSet[g]; allowed {
			return Decision{MimeType: resolved, Group: g, Extension: ext}, nil
		}
	}

	details := map[string]any{
		"mime_type": resolved,
		"allowed":   describeGroups(p.groups),
	}
	if p.cadByExtension {
		details["cad_extensions"] = sortedExtensions(cadExtensions)
	}
	return Decision{}, pkgerrors.New(pkgerrors.CodeUnsupportedType, "file type not supported").WithDetails(details)
}

func declaresCAD(declared string) bool {
	normalized, err := normalizeMimeType(declared)
	if err != nil {
		return false
	}
	g, ok := GroupOf(normalized)
	return ok && g == GroupCAD
}
