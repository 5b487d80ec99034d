package v1

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/tax"
)

var registerOnce sync.Once

// RegisterValidators adds the GST binding tags to gin's validator:
//
//	gstin     - a 15 character GSTIN with a valid checksum
//	statecode - a two digit GST state code
//	date      - a YYYY-MM-DD calendar date
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
			return tax.ValidateGSTIN(tax.NormalizeGSTIN(fl.Field().String())) == nil
		})
		_ = v.RegisterValidation("statecode", func(fl validator.FieldLevel) bool {
			return tax.ValidStateCode(fl.Field().String())
		})
		_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
			_, err := types.ParseDate(fl.Field().String())
			return err == nil
		})
	})
}
