package labels

import (
	"strings"

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
)

const depositPrefix = "Deposit"

// ParseNotes derives GLS services from the free-text delivery notes.
// Rules are checked in order and the first matching prefix wins.
func ParseNotes(notes *string) carrier.Services {
	var s carrier.Services
	if notes == nil {
		return s
	}

	n := *notes
	switch {
	case strings.HasPrefix(n, depositPrefix):
		s.Deposit = n[len(depositPrefix):]
	case strings.HasPrefix(n, "Flex"):
		s.SetFlexDelivery()
	case strings.HasPrefix(n, "DirectShop"):
		s.SetDirectShop()
	case strings.HasPrefix(n, "Private"):
		s.SetPrivateDelivery()
	}
	return s
}
