// Package version resolves human-readable display names for executables from
// their embedded version-information resource.
package version

import (
	"github.com/sirupsen/logrus"

	"github.com/playwatch/playwatch/internal/logging"
)

// Translation is one (language, code page) pair from an executable's
// translation table, declaring a localized string table.
type Translation struct {
	Language uint16
	CodePage uint16
}

// fallbackTranslations are tried when none of the pairs the executable
// declares actually resolves. Plenty of binaries ship a translation table
// whose entries go nowhere while still exposing strings under these common
// defaults (Forza Horizon 4 is one known case).
var fallbackTranslations = []Translation{
	{0x0409, 0x04E4}, // U.S. English, Windows Multilingual
	{0x0409, 0x04B0}, // U.S. English, Unicode
	{0x0000, 0x04E4}, // Neutral, Windows Multilingual
	{0x0409, 0x0000}, // U.S. English, Neutral
	{0x0000, 0x0000}, // Neutral, Neutral
	{0x0000, 0x04B0}, // Neutral, Unicode
}

// Block is one executable's loaded version-information resource.
type Block interface {
	// Translations returns the declared translation table, in table
	// order. Empty when the resource declares none.
	Translations() []Translation

	// ProductName returns the ProductName string for a translation pair.
	// ok is false when the pair has no string table or no ProductName.
	ProductName(tr Translation) (string, bool)
}

// InfoReader loads the version-information resource embedded in an
// executable. All raw buffer access stays behind this seam.
type InfoReader interface {
	Read(path string) (Block, error)
}

// Resolver turns executable paths into display names. Every failure mode
// degrades to "" rather than an error; callers fall back to the raw
// executable name.
type Resolver struct {
	reader InfoReader
	logger *logrus.Entry
}

// NewResolver returns a resolver backed by the platform's version-info API.
func NewResolver() *Resolver {
	return newResolver(newPlatformReader())
}

func newResolver(reader InfoReader) *Resolver {
	return &Resolver{
		reader: reader,
		logger: logging.NewLogger("version"),
	}
}

// Resolve returns the executable's ProductName, or "" when no name can be
// determined. Declared translation pairs are tried in table order first,
// then the fixed fallback list; the first non-empty name wins.
func (r *Resolver) Resolve(path string) string {
	if path == "" {
		return ""
	}

	block, err := r.reader.Read(path)
	if err != nil {
		r.logger.Warnf("Could not retrieve product name for %s: %v", path, err)
		return ""
	}

	translations := block.Translations()
	if len(translations) == 0 {
		r.logger.Warnf("No translation info for %s", path)
	}

	if name, ok := r.lookup(block, translations); ok {
		return name
	}
	if name, ok := r.lookup(block, fallbackTranslations); ok {
		return name
	}

	r.logger.Warnf("Could not determine product name for %s", path)
	return ""
}

func (r *Resolver) lookup(block Block, translations []Translation) (string, bool) {
	for _, tr := range translations {
		name, ok := block.ProductName(tr)
		if ok && name != "" {
			return name, true
		}
		r.logger.Debugf("No product name for language %04x%04x", tr.Language, tr.CodePage)
	}
	return "", false
}
