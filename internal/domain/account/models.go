package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownName is shown for transactions whose account is not registered.
const UnknownName = "Unknown Account"

// Type is the provider's top-level account type.
type Type string

const (
	TypeDepository Type = "depository"
	TypeCredit     Type = "credit"
	TypeLoan       Type = "loan"
	TypeInvestment Type = "investment"
	TypeOther      Type = "other"
	TypeUnknown    Type = "unknown"
)

var accountTypes = map[Type]struct{}{
	TypeDepository: {},
	TypeCredit:     {},
	TypeLoan:       {},
	TypeInvestment: {},
	TypeOther:      {},
}

// ParseType maps a provider type string onto the closed set. Anything
// unrecognised becomes TypeUnknown.
func ParseType(s string) Type {
	if _, ok := accountTypes[Type(s)]; ok {
		return Type(s)
	}
	return TypeUnknown
}

// Subtype is the provider's account subtype.
type Subtype string

const (
	SubtypeChecking    Subtype = "checking"
	SubtypeSavings     Subtype = "savings"
	SubtypeMoneyMarket Subtype = "money market"
	SubtypeCD          Subtype = "cd"
	SubtypePrepaid     Subtype = "prepaid"
	SubtypeCashManage  Subtype = "cash management"
	SubtypeCreditCard  Subtype = "credit card"
	SubtypePaypal      Subtype = "paypal"
	SubtypeMortgage    Subtype = "mortgage"
	SubtypeStudent     Subtype = "student"
	SubtypeAuto        Subtype = "auto"
	SubtypeBrokerage   Subtype = "brokerage"
	SubtypeIRA         Subtype = "ira"
	Subtype401k        Subtype = "401k"
	SubtypeHSA         Subtype = "hsa"
	SubtypeUnknown     Subtype = "unknown"
)

var accountSubtypes = map[Subtype]struct{}{
	SubtypeChecking:    {},
	SubtypeSavings:     {},
	SubtypeMoneyMarket: {},
	SubtypeCD:          {},
	SubtypePrepaid:     {},
	SubtypeCashManage:  {},
	SubtypeCreditCard:  {},
	SubtypePaypal:      {},
	SubtypeMortgage:    {},
	SubtypeStudent:     {},
	SubtypeAuto:        {},
	SubtypeBrokerage:   {},
	SubtypeIRA:         {},
	Subtype401k:        {},
	SubtypeHSA:         {},
}

// ParseSubtype maps a provider subtype onto the closed set. Missing or
// unrecognised values become SubtypeUnknown.
func ParseSubtype(s string) Subtype {
	if _, ok := accountSubtypes[Subtype(s)]; ok {
		return Subtype(s)
	}
	return SubtypeUnknown
}

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Account is the locally cached view of a provider account. IDs are the
// provider's stable account IDs and accounts are never deleted.
type Account struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Type             Type            `json:"type"`
	Subtype          Subtype         `json:"subtype"`
	Mask             string          `json:"mask,omitempty"`
	OfficialName     string          `json:"officialName,omitempty"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// UpsertParams contains parameters for upserting an account
type UpsertParams struct {
	ID               string
	Name             string
	Type             Type
	Subtype          Subtype
	Mask             string
	OfficialName     string
	AvailableBalance decimal.Decimal
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	if p.ID == "" {
		return errors.New("account ID is required for upsert")
	}
	if p.Type == "" {
		return errors.New("account type is required")
	}
	if p.Subtype == "" {
		return errors.New("account subtype is required")
	}
	return nil
}
