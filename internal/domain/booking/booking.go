package booking

import (
	"github.com/gocomet/ride-sdk/internal/domain/geo"
)

// VehicleType represents the class of vehicle requested
type VehicleType string

const (
	VehicleEconomy VehicleType = "economy"
	VehicleComfort VehicleType = "comfort"
	VehiclePremium VehicleType = "premium"
	VehicleXL      VehicleType = "xl"
)

// IsValid validates the vehicle type
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleEconomy, VehicleComfort, VehiclePremium, VehicleXL:
		return true
	}
	return false
}

// VehicleOption is a static catalog entry for a bookable vehicle class
type VehicleOption struct {
	Type       VehicleType `json:"type"`
	Multiplier float64     `json:"multiplier"`
	Capacity   int         `json:"capacity"`
}

// Catalog is the read-only vehicle catalog. Unknown types fall back to a 1.0
// multiplier at fare time.
var Catalog = map[VehicleType]VehicleOption{
	VehicleEconomy: {Type: VehicleEconomy, Multiplier: 1.0, Capacity: 4},
	VehicleComfort: {Type: VehicleComfort, Multiplier: 1.3, Capacity: 4},
	VehiclePremium: {Type: VehiclePremium, Multiplier: 1.8, Capacity: 4},
	VehicleXL:      {Type: VehicleXL, Multiplier: 1.6, Capacity: 6},
}

// Multiplier returns the fare multiplier for a vehicle type, 1.0 when unknown
func Multiplier(v VehicleType) float64 {
	if opt, ok := Catalog[v]; ok {
		return opt.Multiplier
	}
	return 1.0
}

// PaymentMethod represents how the rider intends to pay
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

// IsValid validates the payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentWallet:
		return true
	}
	return false
}

// Booking is the fully derived pre-confirmation draft. It is recomputed as a
// whole whenever any input changes; consumers never observe a partially
// updated mix of old route and new fare.
type Booking struct {
	Pickup        geo.Location  `json:"pickup"`
	Destination   geo.Location  `json:"destination"`
	Route         *geo.Route    `json:"route"`
	BaseFare      int64         `json:"base_fare"`
	FinalFare     int64         `json:"final_fare"`
	Discount      int64         `json:"discount"`
	VehicleType   VehicleType   `json:"vehicle_type"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PromoCode     string        `json:"promo_code,omitempty"`
}
