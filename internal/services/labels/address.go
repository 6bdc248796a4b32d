package labels

import (
	"strings"

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/biter777/countries"
)

// MapAddress converts an OMS address and optional contact into a GLS address.
func MapAddress(addr models.Address, contact *models.ContactPerson) (carrier.Address, error) {
	num, err := countryNumber(addr.CountryCode)
	if err != nil {
		return carrier.Address{}, err
	}

	out := carrier.Address{
		Name1:      addr.Addressee,
		Street1:    addr.StreetNameAndNumber,
		ZipCode:    addr.PostalCode,
		City:       addr.CityTownOrVillage,
		CountryNum: num,
	}
	if contact != nil {
		out.Contact = contact.Name
		out.Email = contact.Email
		out.Mobile = contact.MobileNumber
		out.Phone = contact.PhoneNumber
	}
	return out, nil
}

// countryNumber returns the ISO 3166-1 numeric code for an alpha-2 code.
func countryNumber(iso2 string) (int, error) {
	code := strings.ToUpper(strings.TrimSpace(iso2))
	if len(code) != 2 {
		return 0, &UnknownCountryError{Code: iso2}
	}
	c := countries.ByName(code)
	if c == countries.Unknown || !c.IsValid() || c.Alpha2() != code {
		return 0, &UnknownCountryError{Code: iso2}
	}
	return int(c), nil
}
