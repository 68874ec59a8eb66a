package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"echallan-service/internal/compliance"
	"echallan-service/internal/domain/vehicle"
	"echallan-service/internal/utils"
)

// Dataset column headers.
const (
	ColRegistration = "Registration_Number"
	ColOwnerName    = "Owner_Name"
	ColOwnerEmail   = "Owner_Email"
	ColVehicleClass = "Vehicle_Class"
	ColMake         = "Make"
	ColModel        = "Model"
	ColFuelType     = "Fuel_Type"
	ColFitness      = "Fitness_Expiry"
	ColInsurance    = "Insurance_Expiry"
	ColPUC          = "PUC_Expiry"
	ColPermit       = "Permit_Expiry"
	ColRoadTax      = "Road_Tax_Expiry"
)

var ErrMissingPlateColumn = errors.New("dataset has no " + ColRegistration + " column")

// Load reads a .csv or .xlsx dataset from path. sheet is only used for xlsx
// files; an empty sheet selects the first one.
func Load(path, sheet string) (*Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err := ReadXLSX(path, sheet)
		if err != nil {
			return nil, err
		}
		return NewStore(records), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		records, err := ReadCSV(f)
		if err != nil {
			return nil, err
		}
		return NewStore(records), nil
	}
}

func ReadCSV(r io.Reader) ([]vehicle.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv dataset: %w", err)
	}
	return recordsFromRows(rows)
}

func ReadXLSX(path, sheet string) ([]vehicle.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx dataset: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) > 0 {
		for _, i := range expiryColumns(rows[0]) {
			for _, row := range rows[1:] {
				if i < len(row) {
					row[i] = dateFromSerial(row[i])
				}
			}
		}
	}
	return recordsFromRows(rows)
}

var expiryHeaders = map[string]bool{
	ColFitness:   true,
	ColInsurance: true,
	ColPUC:       true,
	ColPermit:    true,
	ColRoadTax:   true,
}

func expiryColumns(header []string) []int {
	var cols []int
	for i, h := range header {
		if expiryHeaders[strings.TrimSpace(h)] {
			cols = append(cols, i)
		}
	}
	return cols
}

// dateFromSerial turns a raw spreadsheet date serial into the expiry layout.
// Cells already holding text are returned unchanged.
func dateFromSerial(v string) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format(compliance.ExpiryLayout)
}

func recordsFromRows(rows [][]string) ([]vehicle.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	header := make([]string, len(rows[0]))
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		index[h] = i
	}
	if _, ok := index[ColRegistration]; !ok {
		return nil, ErrMissingPlateColumn
	}

	records := make([]vehicle.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			v := strings.TrimSpace(row[i])
			if compliance.IsMissing(v) {
				return ""
			}
			return v
		}

		plate := utils.NormalizePlate(cell(ColRegistration))
		if plate == "" {
			continue
		}
		raw := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) && !compliance.IsMissing(row[i]) {
				raw[h] = strings.TrimSpace(row[i])
			} else {
				raw[h] = "N/A"
			}
		}
		records = append(records, vehicle.Record{
			Plate:           plate,
			OwnerName:       cell(ColOwnerName),
			OwnerEmail:      cell(ColOwnerEmail),
			VehicleClass:    cell(ColVehicleClass),
			Make:            cell(ColMake),
			Model:           cell(ColModel),
			FuelType:        cell(ColFuelType),
			FitnessExpiry:   cell(ColFitness),
			InsuranceExpiry: cell(ColInsurance),
			PUCExpiry:       cell(ColPUC),
			PermitExpiry:    cell(ColPermit),
			RoadTaxExpiry:   cell(ColRoadTax),
			Raw:             raw,
		})
	}
	return records, nil
}
