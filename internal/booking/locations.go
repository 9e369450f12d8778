package booking

// Location is one of the fixed site codes accepted by the booking
// query endpoint.
type Location string

const (
	LocRafflesPlace   Location = "SRP"
	LocTanjongPagar   Location = "STP"
	LocHollandVillage Location = "SHV"
	LocMarinaOne      Location = "SMO"
	LocDuoGalleria    Location = "SDG"
	LocPayaLebar      Location = "SPL"
)

var locationNames = map[Location]string{
	LocRafflesPlace:   "Raffles Place",
	LocTanjongPagar:   "Tanjong Pagar",
	LocHollandVillage: "Holland Village",
	LocMarinaOne:      "Marina One",
	LocDuoGalleria:    "Duo Galleria",
	LocPayaLebar:      "Paya Lebar",
}

// Locations returns all site codes in display order.
func Locations() []Location {
	return []Location{
		LocRafflesPlace, LocTanjongPagar,
		LocHollandVillage, LocMarinaOne,
		LocDuoGalleria, LocPayaLebar,
	}
}

func (l Location) Valid() bool {
	_, ok := locationNames[l]
	return ok
}

// DisplayName returns the human-readable outlet name, or the raw code
// if the code is unknown.
func (l Location) DisplayName() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return string(l)
}
