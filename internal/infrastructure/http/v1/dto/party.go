package dto

import (
	"time"

	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/tax"
)

// AddressDTO is a postal address.
type AddressDTO struct {
	Line1     string `json:"line1"`
	City      string `json:"city"`
	StateCode string `json:"stateCode" binding:"omitempty,statecode"`
	Pincode   string `json:"pincode"`
}

func (a AddressDTO) toModel() party.Address {
	return party.Address(a)
}

func fromAddress(a party.Address) AddressDTO {
	return AddressDTO(a)
}

// CreatePartyRequest is the body of POST /parties.
type CreatePartyRequest struct {
	Name          string     `json:"name" binding:"required"`
	Role          string     `json:"role" binding:"required,oneof=customer vendor both"`
	GSTStatus     string     `json:"gstStatus" binding:"required,oneof=GST Non-GST Exempted"`
	GSTIN         string     `json:"gstin" binding:"omitempty,gstin"`
	HomeStateCode string     `json:"homeStateCode" binding:"required,statecode"`
	Billing       AddressDTO `json:"billing"`
	Shipping      AddressDTO `json:"shipping"`
	Email         string     `json:"email" binding:"omitempty,email"`
	Phone         string     `json:"phone"`
}

// ToParty maps the request to a new party.
func (r CreatePartyRequest) ToParty() *party.Party {
	p := party.NewParty(r.Name, party.Role(r.Role), tax.Status(r.GSTStatus), r.GSTIN, r.HomeStateCode)
	p.Billing = r.Billing.toModel()
	p.Shipping = r.Shipping.toModel()
	p.Email = r.Email
	p.Phone = r.Phone
	p.Normalize()
	return p
}

// UpdatePartyRequest is the body of PUT /parties/:id. Nil fields are left
// unchanged.
type UpdatePartyRequest struct {
	Name          *string     `json:"name" binding:"omitempty,min=1"`
	Role          *string     `json:"role" binding:"omitempty,oneof=customer vendor both"`
	GSTStatus     *string     `json:"gstStatus" binding:"omitempty,oneof=GST Non-GST Exempted"`
	GSTIN         *string     `json:"gstin" binding:"omitempty,gstin"`
	HomeStateCode *string     `json:"homeStateCode" binding:"omitempty,statecode"`
	Billing       *AddressDTO `json:"billing"`
	Shipping      *AddressDTO `json:"shipping"`
	Email         *string     `json:"email" binding:"omitempty,email"`
	Phone         *string     `json:"phone"`
	Version       int         `json:"version" binding:"required,min=1"`
}

// Apply copies the set fields onto p.
func (r UpdatePartyRequest) Apply(p *party.Party) *party.Party {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Role != nil {
		p.Role = party.Role(*r.Role)
	}
	if r.GSTStatus != nil {
		p.GSTStatus = tax.Status(*r.GSTStatus)
	}
	if r.GSTIN != nil {
		p.GSTIN = *r.GSTIN
	}
	if r.HomeStateCode != nil {
		p.HomeStateCode = *r.HomeStateCode
	}
	if r.Billing != nil {
		p.Billing = r.Billing.toModel()
	}
	if r.Shipping != nil {
		p.Shipping = r.Shipping.toModel()
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.Phone != nil {
		p.Phone = *r.Phone
	}
	p.Version = r.Version
	p.Normalize()
	return p
}

// PartyResponse is a party in API responses.
type PartyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	GSTStatus     string     `json:"gstStatus"`
	GSTIN         string     `json:"gstin,omitempty"`
	HomeStateCode string     `json:"homeStateCode"`
	HomeState     string     `json:"homeState"`
	Billing       AddressDTO `json:"billing"`
	Shipping      AddressDTO `json:"shipping"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// FromParty maps a party to its response.
func FromParty(p *party.Party) PartyResponse {
	return PartyResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Role:          string(p.Role),
		GSTStatus:     string(p.GSTStatus),
		GSTIN:         p.GSTIN,
		HomeStateCode: p.HomeStateCode,
		HomeState:     tax.StateName(p.HomeStateCode),
		Billing:       fromAddress(p.Billing),
		Shipping:      fromAddress(p.Shipping),
		Email:         p.Email,
		Phone:         p.Phone,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
