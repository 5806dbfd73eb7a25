package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

// Survey CSVs arrive with headers in several spellings depending on the
// export. Headers are normalized to lowercase snake case and then mapped
// through this table; Major_Crops in particular becomes crop.
var headerAliases = map[string]string{
	"district":                              "district",
	"state":                                 "state",
	"soil_type":                             "soil_type",
	"latitude":                              "latitude",
	"longitude":                             "longitude",
	"avg_rainfall_mm":                       "avg_rainfall_mm",
	"avg_temperature_c":                     "avg_temp_c",
	"avg_temp_c":                            "avg_temp_c",
	"fertilizer_usage_kg_per_ha":            "fert_usage_kg_ha",
	"fert_usage_kg_ha":                      "fert_usage_kg_ha",
	"ph_level":                              "ph_level",
	"nitrogen_kg_per_ha":                    "nitrogen_kg_ha",
	"phosphorus_kg_per_ha":                  "phosphorus_kg_ha",
	"potassium_kg_per_ha":                   "potassium_kg_ha",
	"organic_matter_percentage":             "organic_matter_pct",
	"electrical_conductivity_ds_per_m":      "salinity_ds_m",
	"cation_exchange_capacity_meq_per_100g": "cec_meq_100g",
	"zinc_ppm":                              "zinc_ppm",
	"iron_ppm":                              "iron_ppm",
	"manganese_ppm":                         "manganese_ppm",
	"copper_ppm":                            "copper_ppm",
	"major_crops":                           "crop",
	"crop":                                  "crop",
	"mandi_price_rupees_per_kg":             "mandi_price_rs_qtl",
	"mandi_price_rs_per_quintal":            "mandi_price_rs_qtl",
	"crop_production_rate_yearly":           "production_rate_tpy",
	"production_rate_tpy":                   "production_rate_tpy",
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(h) {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// ParseDistrictsCSV reads a survey CSV into district rows. Unknown columns
// are ignored; rows missing district, soil type or crop are rejected.
func ParseDistrictsCSV(r io.Reader) ([]entities.DistrictProfile, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read csv header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		if canon, ok := headerAliases[normalizeHeader(h)]; ok {
			cols[canon] = i
		}
	}
	for _, required := range []string{"district", "soil_type", "crop"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("catalog: csv missing required column %q", required)
		}
	}

	str := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(rec []string, name string) float64 {
		s := str(rec, name)
		if s == "" {
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}

	var rows []entities.DistrictProfile
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("catalog: csv line %d: %w", line, err)
		}
		row := entities.DistrictProfile{
			District:          str(rec, "district"),
			State:             str(rec, "state"),
			SoilType:          str(rec, "soil_type"),
			Latitude:          num(rec, "latitude"),
			Longitude:         num(rec, "longitude"),
			AvgRainfallMM:     num(rec, "avg_rainfall_mm"),
			AvgTempC:          num(rec, "avg_temp_c"),
			FertUsageKgHa:     num(rec, "fert_usage_kg_ha"),
			PHLevel:           num(rec, "ph_level"),
			NitrogenKgHa:      num(rec, "nitrogen_kg_ha"),
			PhosphorusKgHa:    num(rec, "phosphorus_kg_ha"),
			PotassiumKgHa:     num(rec, "potassium_kg_ha"),
			OrganicMatterPct:  num(rec, "organic_matter_pct"),
			SalinityDSM:       num(rec, "salinity_ds_m"),
			CECMeq100g:        num(rec, "cec_meq_100g"),
			ZincPPM:           num(rec, "zinc_ppm"),
			IronPPM:           num(rec, "iron_ppm"),
			ManganesePPM:      num(rec, "manganese_ppm"),
			CopperPPM:         num(rec, "copper_ppm"),
			MajorCrop:         str(rec, "crop"),
			MandiPriceRsQtl:   num(rec, "mandi_price_rs_qtl"),
			ProductionRateTPY: num(rec, "production_rate_tpy"),
		}
		if row.District == "" || row.SoilType == "" || row.MajorCrop == "" {
			return nil, fmt.Errorf("catalog: csv line %d: district, soil type and crop are required", line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseCropsJSON decodes crop agronomy profiles.
func ParseCropsJSON(r io.Reader) ([]entities.Crop, error) {
	dec := json.NewDecoder(r)
	var crops []entities.Crop
	if err := dec.Decode(&crops); err != nil {
		return nil, fmt.Errorf("catalog: decode crops json: %w", err)
	}
	for i := range crops {
		if strings.TrimSpace(crops[i].Name) == "" {
			return nil, fmt.Errorf("catalog: crops json entry %d has no name", i)
		}
	}
	return crops, nil
}
