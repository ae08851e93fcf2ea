package domain

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const defaultSection = "general"

// VaultLocation is the resolved permanent home of an approved file.
type VaultLocation struct {
	Container string
	ObjectID  string
}

// ResolveVaultLocation maps submission metadata to a vault path. Same inputs give the same path.
//
//	<root>/<academic-year>/<semester>/<faculty>/<course>/<section>/<folder>/v<version>_<file>
func ResolveVaultLocation(root string, sub *Submission, folder string) (VaultLocation, error) {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" {
		return VaultLocation{}, WrapError(ErrConfiguration, "resolve vault location", errors.New("vault root is not configured"))
	}
	if sub == nil {
		return VaultLocation{}, WrapError(ErrInvalidInput, "resolve vault location", errors.New("nil submission"))
	}
	if err := sub.Identity.Validate(); err != nil {
		return VaultLocation{}, err
	}
	if sub.Version <= 0 {
		return VaultLocation{}, WrapError(ErrInvalidInput, "resolve vault location", fmt.Errorf("bad version %d", sub.Version))
	}

	section := sub.Section
	if strings.TrimSpace(section) == "" {
		section = defaultSection
	}
	if strings.TrimSpace(folder) == "" {
		folder = sub.Identity.DocumentTypeID
	}

	container := path.Join(
		root,
		SanitizeName(sub.Identity.AcademicYear),
		SanitizeName(sub.Identity.Semester),
		SanitizeName(sub.Identity.FacultyID),
		SanitizeName(sub.Identity.CourseID),
		SanitizeName(section),
		SanitizeName(folder),
	)
	object := path.Join(container, fmt.Sprintf("v%d_%s", sub.Version, SanitizeName(sub.Filename)))
	return VaultLocation{Container: container, ObjectID: object}, nil
}

// SanitizeName keeps a conservative character set so names are safe as object-key segments.
func SanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if strings.Trim(base, ".") == "" {
		return "document.bin"
	}
	return base
}

// ExtensionOf returns the normalized extension of a filename.
func ExtensionOf(filename string) string {
	return NormalizeExtension(filepath.Ext(strings.TrimSpace(filename)))
}
