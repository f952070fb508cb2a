package domain

import (
	"sort"
	"strings"
)

const (
	// CountryCode is the all-India aggregate region.
	CountryCode = "TT"
	// UnknownCode marks cases not yet assigned to a state. It never appears
	// in normalized output.
	UnknownCode = "UN"
)

// regionNames maps region codes to display names.
var regionNames = map[string]string{
	"AP": "Andhra Pradesh", "AR": "Arunachal Pradesh", "AS": "Assam",
	"BR": "Bihar", "CT": "Chhattisgarh", "GA": "Goa", "GJ": "Gujarat",
	"HR": "Haryana", "HP": "Himachal Pradesh", "JH": "Jharkhand",
	"KA": "Karnataka", "KL": "Kerala", "MP": "Madhya Pradesh",
	"MH": "Maharashtra", "MN": "Manipur", "ML": "Meghalaya",
	"MZ": "Mizoram", "NL": "Nagaland", "OR": "Odisha", "PB": "Punjab",
	"RJ": "Rajasthan", "SK": "Sikkim", "TN": "Tamil Nadu",
	"TG": "Telangana", "TR": "Tripura", "UT": "Uttarakhand",
	"UP": "Uttar Pradesh", "WB": "West Bengal",
	"AN": "Andaman and Nicobar Islands", "CH": "Chandigarh",
	"DN": "Dadra and Nagar Haveli and Daman and Diu", "DL": "Delhi",
	"JK": "Jammu and Kashmir", "LA": "Ladakh", "LD": "Lakshadweep",
	"PY": "Puducherry", CountryCode: "India",
}

// RegionName resolves a region code to its display name.
func RegionName(code string) (string, bool) {
	name, ok := regionNames[code]
	return name, ok
}

// KnownRegion reports whether code is in the catalog. UnknownCode is not.
func KnownRegion(code string) bool {
	_, ok := regionNames[code]
	return ok
}

// RegionCodes returns all catalog codes in sorted order.
func RegionCodes() []string {
	codes := make([]string, 0, len(regionNames))
	for code := range regionNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RegionNames returns all display names in sorted order.
func RegionNames() []string {
	names := make([]string, 0, len(regionNames))
	for _, name := range regionNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SearchRegions returns lowercased display names mapped to their codes for
// every region whose name contains partial, case-insensitively.
func SearchRegions(partial string) map[string]string {
	partial = strings.ToLower(partial)
	matches := make(map[string]string)
	for code, name := range regionNames {
		lower := strings.ToLower(name)
		if strings.Contains(lower, partial) {
			matches[lower] = code
		}
	}
	return matches
}
