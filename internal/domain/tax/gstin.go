package tax

import (
	"fmt"
	"regexp"
	"strings"
)

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

const gstinAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// stateNames maps GST state codes to names.
var stateNames = map[string]string{
	"01": "Jammu and Kashmir", "02": "Himachal Pradesh", "03": "Punjab",
	"04": "Chandigarh", "05": "Uttarakhand", "06": "Haryana", "07": "Delhi",
	"08": "Rajasthan", "09": "Uttar Pradesh", "10": "Bihar", "11": "Sikkim",
	"12": "Arunachal Pradesh", "13": "Nagaland", "14": "Manipur", "15": "Mizoram",
	"16": "Tripura", "17": "Meghalaya", "18": "Assam", "19": "West Bengal",
	"20": "Jharkhand", "21": "Odisha", "22": "Chhattisgarh", "23": "Madhya Pradesh",
	"24": "Gujarat", "26": "Dadra and Nagar Haveli and Daman and Diu",
	"27": "Maharashtra", "29": "Karnataka", "30": "Goa", "31": "Lakshadweep",
	"32": "Kerala", "33": "Tamil Nadu", "34": "Puducherry",
	"35": "Andaman and Nicobar Islands", "36": "Telangana", "37": "Andhra Pradesh",
	"38": "Ladakh", "97": "Other Territory",
}

// ValidStateCode reports whether code is a known two-digit GST state code.
func ValidStateCode(code string) bool {
	_, ok := stateNames[code]
	return ok
}

// StateName returns the state name for code, or "" if unknown.
func StateName(code string) string {
	return stateNames[code]
}

// NormalizeGSTIN upper-cases and trims a GSTIN.
func NormalizeGSTIN(gstin string) string {
	return strings.ToUpper(strings.TrimSpace(gstin))
}

// GSTINChecksum computes the 15th character for the first 14 characters.
func GSTINChecksum(first14 string) (byte, error) {
	if len(first14) < 14 {
		return 0, fmt.Errorf("gstin prefix too short")
	}
	sum := 0
	for i := 0; i < 14; i++ {
		v := strings.IndexByte(gstinAlphabet, first14[i])
		if v < 0 {
			return 0, fmt.Errorf("invalid gstin character %q", first14[i])
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		p := v * factor
		sum += p/36 + p%36
	}
	return gstinAlphabet[(36-sum%36)%36], nil
}

// ValidateGSTIN checks the pattern, the embedded state code and the checksum.
func ValidateGSTIN(gstin string) error {
	if !gstinPattern.MatchString(gstin) {
		return fmt.Errorf("gstin %q does not match the 15-character format", gstin)
	}
	if !ValidStateCode(gstin[:2]) {
		return fmt.Errorf("gstin %q has unknown state code %s", gstin, gstin[:2])
	}
	want, err := GSTINChecksum(gstin[:14])
	if err != nil {
		return err
	}
	if gstin[14] != want {
		return fmt.Errorf("gstin %q has invalid checksum", gstin)
	}
	return nil
}
