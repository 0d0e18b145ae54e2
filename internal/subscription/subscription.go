// Package subscription defines the subscription record shared by the sync
// core, the CLI, and the subscription twin, along with its JSON codec.
package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload holds the user-editable fields of a subscription. It is the body of
// create and update requests.
type Payload struct {
	Name          string `json:"name" validate:"notblank,max=200"`
	Price         Price  `json:"price" validate:"gte=0"`
	Category      string `json:"category" validate:"max=100"`
	Description   string `json:"description" validate:"max=2000"`
	AccountHolder string `json:"account_holder" validate:"max=200"`
	AccountEmail  string `json:"account_email" validate:"omitempty,email"`
}

// Subscription is a payload plus its server-assigned identifier.
type Subscription struct {
	ID string `json:"id"`
	Payload
}

// Patch is a partial payload. Nil fields are left untouched by Apply.
type Patch struct {
	Name          *string
	Price         *Price
	Category      *string
	Description   *string
	AccountHolder *string
	AccountEmail  *string
}

// Apply returns base with every non-nil patch field overwritten.
func (p Patch) Apply(base Payload) Payload {
	if p.Name != nil {
		base.Name = *p.Name
	}
	if p.Price != nil {
		base.Price = *p.Price
	}
	if p.Category != nil {
		base.Category = *p.Category
	}
	if p.Description != nil {
		base.Description = *p.Description
	}
	if p.AccountHolder != nil {
		base.AccountHolder = *p.AccountHolder
	}
	if p.AccountEmail != nil {
		base.AccountEmail = *p.AccountEmail
	}
	return base
}

// wireRecord accepts both the canonical field names and the names used by
// older service versions (companyName, subscriptionCategory, ...).
type wireRecord struct {
	ID              json.RawMessage `json:"id"`
	LegacyID        json.RawMessage `json:"subscriptionID"`
	Name            *string         `json:"name"`
	CompanyName     *string         `json:"companyName"`
	Price           *Price          `json:"price"`
	Category        *string         `json:"category"`
	LegacyCategory  *string         `json:"subscriptionCategory"`
	Description     *string         `json:"description"`
	AccountHolder   *string         `json:"account_holder"`
	UserName        *string         `json:"userName"`
	AccountEmail    *string         `json:"account_email"`
	EmailAssociated *string         `json:"emailAssociated"`
}

func (w wireRecord) patch() Patch {
	return Patch{
		Name:          firstSet(w.Name, w.CompanyName),
		Price:         w.Price,
		Category:      firstSet(w.Category, w.LegacyCategory),
		Description:   w.Description,
		AccountHolder: firstSet(w.AccountHolder, w.UserName),
		AccountEmail:  firstSet(w.AccountEmail, w.EmailAssociated),
	}
}

func firstSet(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// UnmarshalJSON decodes a patch; absent and null fields stay nil.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = w.patch()
	return nil
}

// UnmarshalJSON decodes a payload; absent fields take their zero value.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var pt Patch
	if err := json.Unmarshal(data, &pt); err != nil {
		return err
	}
	*p = pt.Apply(Payload{})
	return nil
}

// UnmarshalJSON decodes a record. Numeric identifiers are kept as their
// decimal text.
func (s *Subscription) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw := w.ID
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = w.LegacyID
	}
	id, err := decodeID(raw)
	if err != nil {
		return err
	}
	*s = Subscription{ID: id, Payload: w.patch().Apply(Payload{})}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decoding id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %s", raw)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("id must be an integer: %s", n)
	}
	return n.String(), nil
}
