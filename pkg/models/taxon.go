package models

import (
	"strings"
	"unicode"
)

// TaxonKind describes how a taxon identifier is passed to ncbi-genome-download.
type TaxonKind string

const (
	// TaxonKindTaxID is a numeric NCBI taxonomy ID (--taxids).
	TaxonKindTaxID TaxonKind = "taxid"
	// TaxonKindGroup is one of the ncbi-genome-download groups (positional argument).
	TaxonKindGroup TaxonKind = "group"
	// TaxonKindGenus is an organism or genus name (--genera).
	TaxonKindGenus TaxonKind = "genus"
)

// ncbiGroups lists the groups accepted by ncbi-genome-download.
var ncbiGroups = map[string]bool{
	"all":                  true,
	"archaea":              true,
	"bacteria":             true,
	"fungi":                true,
	"invertebrate":         true,
	"metagenomes":          true,
	"plant":                true,
	"protozoa":             true,
	"vertebrate_mammalian": true,
	"vertebrate_other":     true,
	"viral":                true,
}

// Taxon is a parsed taxon identifier.
type Taxon struct {
	// Raw is the identifier as the user typed it, trimmed.
	Raw string `json:"raw"`
	// Kind selects the ncbi-genome-download flag used for it.
	Kind TaxonKind `json:"kind"`
}

// ParseTaxon classifies a taxon identifier.
// All-digit identifiers are taxonomy IDs, known group names are groups,
// and anything else is treated as a genus or organism name.
func ParseTaxon(id string) Taxon {
	id = strings.TrimSpace(id)
	switch {
	case id != "" && strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) }) < 0:
		return Taxon{Raw: id, Kind: TaxonKindTaxID}
	case ncbiGroups[strings.ToLower(id)]:
		return Taxon{Raw: strings.ToLower(id), Kind: TaxonKindGroup}
	default:
		return Taxon{Raw: id, Kind: TaxonKindGenus}
	}
}

// IsGroup reports whether name is an ncbi-genome-download group.
func IsGroup(name string) bool {
	return ncbiGroups[strings.ToLower(strings.TrimSpace(name))]
}

// String returns the raw identifier.
func (t Taxon) String() string {
	return t.Raw
}
