package vehicle

// Record is one row of the vehicle reference dataset. Expiry values are kept
// as raw strings so that missing and unparsable values stay distinguishable.
type Record struct {
	Plate           string `json:"plate_number"`
	OwnerName       string `json:"owner_name"`
	OwnerEmail      string `json:"owner_email"`
	VehicleClass    string `json:"vehicle_type"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	FuelType        string `json:"fuel_type"`
	FitnessExpiry   string `json:"fitness_expiry"`
	InsuranceExpiry string `json:"insurance_expiry"`
	PUCExpiry       string `json:"puc_expiry"`
	PermitExpiry    string `json:"permit_expiry"`
	RoadTaxExpiry   string `json:"road_tax_expiry"`
	// Raw holds every column of the source row keyed by header.
	Raw map[string]string `json:"raw_data,omitempty"`
}
