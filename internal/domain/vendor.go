package domain

// VendorRecord is a resolved vendor identity. Transactions reference vendors,
// they never own them. LedgerID stays empty until the vendor is first created
// in the external ledger.
type VendorRecord struct {
	ID            string
	CanonicalName string
	Aliases       []string
	LedgerID      string
}

// HasAlias reports whether the record already carries the given alias text.
func (v *VendorRecord) HasAlias(alias string) bool {
	for _, a := range v.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}
