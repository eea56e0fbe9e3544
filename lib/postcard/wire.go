package postcard

// RecipientField describes one column of the recipients table the
// postcard creator api expects.
type RecipientField struct {
	Name         string `json:"name"`
	AddressField string `json:"addressField"`
}

// RecipientsPayload is the body of `PUT /users/{id}/mailings/{id}/recipients`.
type RecipientsPayload struct {
	RecipientFields []RecipientField `json:"recipientFields"`
	Recipients      [][]string       `json:"recipients"`
}

// the api dictates both the names (including the duplicated "Company") and the order
var recipientFields = [8]RecipientField{
	{Name: "Salutation", AddressField: "SALUTATION"},
	{Name: "Given Name", AddressField: "GIVEN_NAME"},
	{Name: "Family Name", AddressField: "FAMILY_NAME"},
	{Name: "Company", AddressField: "COMPANY"},
	{Name: "Company", AddressField: "COMPANY_ADDITION"},
	{Name: "Street", AddressField: "STREET"},
	{Name: "Post Code", AddressField: "ZIP_CODE"},
	{Name: "Place", AddressField: "PLACE"},
}

// WireFormat returns the recipient as a single row table, empty optional
// fields are kept as empty strings so that the row always lines up with the fields.
func (r Recipient) WireFormat() RecipientsPayload {
	fields := make([]RecipientField, len(recipientFields))
	copy(fields, recipientFields[:])

	return RecipientsPayload{
		RecipientFields: fields,
		Recipients: [][]string{{
			r.Salutation,
			r.GivenName,
			r.FamilyName,
			r.Company,
			r.CompanyAddition,
			r.Street,
			r.PostalCode,
			r.Place,
		}},
	}
}
