package model

import (
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

var validate = validator.New()

// Validate checks the material's required fields.
func (m ExtractedMaterial) Validate() error {
	if err := validate.Struct(m); err != nil {
		return eris.Wrapf(err, "material %q: invalid", m.MaterialName)
	}
	return nil
}

// Validate checks the supplier item's required fields.
func (s SupplierItem) Validate() error {
	if err := validate.Struct(s); err != nil {
		return eris.Wrapf(err, "supplier item %q: invalid", s.ItemName)
	}
	return nil
}
