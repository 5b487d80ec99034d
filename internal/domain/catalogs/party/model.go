// Package party provides the Party catalog: customers and vendors with
// their GST registration profile.
package party

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/domain/tax"
)

var (
	pincodeRE = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	emailRE   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Role says which side of a transaction a party may appear on.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleBoth     Role = "both"
)

// Address is a postal address. StateCode drives place of supply.
type Address struct {
	Line1     string `db:"line1" json:"line1,omitempty"`
	City      string `db:"city" json:"city,omitempty"`
	StateCode string `db:"state_code" json:"stateCode,omitempty"`
	Pincode   string `db:"pincode" json:"pincode,omitempty"`
}

// IsZero reports whether no field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Value implements driver.Valuer. Addresses are stored as JSON documents.
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("scan address: unsupported type %T", src)
	}
}

func (a Address) validate(field string) error {
	if a.IsZero() {
		return nil
	}
	if a.StateCode != "" && !tax.ValidStateCode(a.StateCode) {
		return apperror.NewValidation("unknown state code").
			WithDetail("field", field+".stateCode").
			WithDetail("value", a.StateCode)
	}
	if a.Pincode != "" && !pincodeRE.MatchString(a.Pincode) {
		return apperror.NewValidation("pincode must be 6 digits").
			WithDetail("field", field+".pincode")
	}
	return nil
}

// Party is a customer or vendor.
type Party struct {
	entity.Catalog

	Role          Role       `db:"role" json:"role"`
	GSTStatus     tax.Status `db:"gst_status" json:"gstStatus"`
	GSTIN         string     `db:"gstin" json:"gstin,omitempty"`
	HomeStateCode string     `db:"home_state_code" json:"homeStateCode"`

	Billing  Address `db:"billing" json:"billing"`
	Shipping Address `db:"shipping" json:"shipping"`

	Email string `db:"email" json:"email,omitempty"`
	Phone string `db:"phone" json:"phone,omitempty"`
}

// NewParty creates a Party with required fields.
func NewParty(name string, role Role, status tax.Status, gstin, homeStateCode string) *Party {
	p := &Party{
		Catalog:       entity.NewCatalog(name),
		Role:          role,
		GSTStatus:     status,
		GSTIN:         gstin,
		HomeStateCode: homeStateCode,
	}
	p.Normalize()
	return p
}

// Normalize canonicalizes free-text fields. A GSTIN is only kept for
// registered parties.
func (p *Party) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.HomeStateCode = strings.TrimSpace(p.HomeStateCode)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.GSTStatus == tax.StatusGST {
		p.GSTIN = tax.NormalizeGSTIN(p.GSTIN)
	} else {
		p.GSTIN = ""
	}
}

// Validate implements entity.Validatable interface.
func (p *Party) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch p.Role {
	case RoleCustomer, RoleVendor, RoleBoth:
	default:
		return apperror.NewValidation("invalid party role").
			WithDetail("field", "role").
			WithDetail("value", string(p.Role))
	}

	if !p.GSTStatus.Valid() {
		return apperror.NewValidation("invalid GST status").
			WithDetail("field", "gstStatus").
			WithDetail("value", string(p.GSTStatus))
	}

	if !tax.ValidStateCode(p.HomeStateCode) {
		return apperror.NewValidation("unknown home state code").
			WithDetail("field", "homeStateCode").
			WithDetail("value", p.HomeStateCode)
	}

	if p.GSTStatus.RequiresGSTIN() {
		if p.GSTIN == "" {
			return apperror.NewValidation("GSTIN is required for GST-registered parties").
				WithDetail("field", "gstin")
		}
		if err := tax.ValidateGSTIN(p.GSTIN); err != nil {
			return apperror.NewValidation(err.Error()).
				WithDetail("field", "gstin")
		}
		if p.GSTIN[:2] != p.HomeStateCode {
			return apperror.NewValidation("GSTIN state prefix does not match home state").
				WithDetail("field", "gstin").
				WithDetail("homeStateCode", p.HomeStateCode)
		}
	} else if p.GSTIN != "" {
		return apperror.NewValidation("GSTIN is only allowed for GST-registered parties").
			WithDetail("field", "gstin")
	}

	if err := p.Billing.validate("billing"); err != nil {
		return err
	}
	if err := p.Shipping.validate("shipping"); err != nil {
		return err
	}

	if p.Email != "" && !emailRE.MatchString(p.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email")
	}

	return nil
}

// IsCustomer returns true if the party can be invoiced.
func (p *Party) IsCustomer() bool {
	return p.Role == RoleCustomer || p.Role == RoleBoth
}

// IsVendor returns true if purchases can be booked against the party.
func (p *Party) IsVendor() bool {
	return p.Role == RoleVendor || p.Role == RoleBoth
}

// PlaceOfSupply returns the default place-of-supply state for goods
// shipped to the party: shipping state, then billing state, then home state.
func (p *Party) PlaceOfSupply() string {
	if p.Shipping.StateCode != "" {
		return p.Shipping.StateCode
	}
	if p.Billing.StateCode != "" {
		return p.Billing.StateCode
	}
	return p.HomeStateCode
}

// TaxIdentityEqual reports whether every field other than contact details
// matches. Parties referenced by posted documents may only change contacts.
func (p *Party) TaxIdentityEqual(other *Party) bool {
	return p.Name == other.Name &&
		p.Role == other.Role &&
		p.GSTStatus == other.GSTStatus &&
		p.GSTIN == other.GSTIN &&
		p.HomeStateCode == other.HomeStateCode &&
		p.Billing == other.Billing &&
		p.Shipping == other.Shipping
}
