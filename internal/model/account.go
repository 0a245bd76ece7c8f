package model

// Account is one financial account owned by an Item.
type Account struct {
	OfficialName *string
	Subtype      *string
	Mask         *string
	ExternalID   string
	Name         string
	Type         string
	ID           int64
	ItemID       int64
}

// Label is the account's display label: the name, plus the masked
// suffix when the provider supplied one.
func (a *Account) Label() string {
	if a.Mask != nil && *a.Mask != "" {
		return a.Name + " •" + *a.Mask
	}
	return a.Name
}
