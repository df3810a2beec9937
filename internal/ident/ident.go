// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident classifies and normalizes paper identifiers.
package ident

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/propextract/pkg/types"
)

// Type classifies an input identifier.
type Type int

const (
	TypeUnknown Type = iota
	TypeDOI
	TypeURL
)

func (t Type) String() string {
	switch t {
	case TypeDOI:
		return "doi"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// DOIResolverBase is the doi.org resolver. Declared as a var so tests can
// substitute an httptest server.
var DOIResolverBase = "https://doi.org/"

// doiPattern matches DOIs: "10.3390/cryst9110586".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixes are stripped before matching, longest first.
var doiPrefixes = []string{
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"https://doi.org/",
	"http://doi.org/",
	"doi.org/",
	"doi:",
}

// Classify determines the identifier type and returns the normalized form.
// DOI resolver URLs and "doi:" prefixes are reduced to the bare DOI.
func Classify(identifier string) (Type, types.PaperIdentifier) {
	identifier = strings.TrimSpace(identifier)

	bare := identifier
	lower := strings.ToLower(bare)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			bare = strings.TrimSpace(bare[len(p):])
			break
		}
	}
	if doiPattern.MatchString(bare) {
		return TypeDOI, types.PaperIdentifier(bare)
	}

	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, types.PaperIdentifier(identifier)
	}

	return TypeUnknown, types.PaperIdentifier(identifier)
}

// Slug returns a filesystem-safe filename stem for the identifier.
func Slug(t Type, normalized types.PaperIdentifier) string {
	switch t {
	case TypeDOI:
		return strings.NewReplacer("/", "_", ":", "-").Replace(string(normalized))
	case TypeURL:
		u, err := url.Parse(string(normalized))
		if err != nil {
			return urlHashSlug(string(normalized))
		}
		base := strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(string(normalized))
		}
		return base
	default:
		return "unknown"
	}
}

// LandingURL returns the page a browser should open for the identifier:
// the doi.org resolver for DOIs, the URL itself otherwise.
func LandingURL(t Type, normalized types.PaperIdentifier) string {
	switch t {
	case TypeDOI:
		return DOIResolverBase + string(normalized)
	case TypeURL:
		return string(normalized)
	default:
		return ""
	}
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}
