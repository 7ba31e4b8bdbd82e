package knowledge

import (
	"strings"

	"github.com/sells-group/bom-matcher/internal/model"
)

// Fingerprint derives the lookup key for a material identity: each field is
// lower-cased with all whitespace removed, joined by "|".
func Fingerprint(name, partNumber, vendor string) string {
	return normalizeField(name) + "|" + normalizeField(partNumber) + "|" + normalizeField(vendor)
}

// MaterialFingerprint returns the fingerprint of an extracted material.
func MaterialFingerprint(m model.ExtractedMaterial) string {
	return Fingerprint(m.MaterialName, m.PartNumber, m.VendorName)
}

// SupplierFingerprint returns the fingerprint of a supplier item.
func SupplierFingerprint(s model.SupplierItem) string {
	return Fingerprint(s.ItemName, s.PartNumber, s.VendorName)
}

func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
