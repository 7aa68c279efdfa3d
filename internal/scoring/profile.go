package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ResidenceType is the applicant's housing status.
type ResidenceType string

const (
	ResidenceOwned    ResidenceType = "Owned"
	ResidenceRented   ResidenceType = "Rented"
	ResidenceMortgage ResidenceType = "Mortgage"
)

// LoanPurpose is what the requested loan pays for.
type LoanPurpose string

const (
	LoanPurposeEducation LoanPurpose = "Education"
	LoanPurposeHome      LoanPurpose = "Home"
	LoanPurposeAuto      LoanPurpose = "Auto"
	LoanPurposePersonal  LoanPurpose = "Personal"
)

// LoanType distinguishes collateralised from unsecured lending.
type LoanType string

const (
	LoanTypeUnsecured LoanType = "Unsecured"
	LoanTypeSecured   LoanType = "Secured"
)

// ApplicantProfile is the raw input to the pipeline. It is built per request and never retained.
type ApplicantProfile struct {
	Age                    int           `json:"age" validate:"gte=18,lte=100"`
	Income                 float64       `json:"income" validate:"gte=0"`
	LoanAmount             float64       `json:"loanAmount" validate:"gte=0"`
	LoanTenureMonths       int           `json:"loanTenureMonths" validate:"gte=0"`
	AvgDaysPastDue         int           `json:"avgDaysPastDue" validate:"gte=0"`
	DelinquencyRatio       int           `json:"delinquencyRatio" validate:"gte=0,lte=100"`
	CreditUtilizationRatio int           `json:"creditUtilizationRatio" validate:"gte=0,lte=100"`
	NumOpenAccounts        int           `json:"numOpenAccounts" validate:"gte=1,lte=4"`
	ResidenceType          ResidenceType `json:"residenceType"`
	LoanPurpose            LoanPurpose   `json:"loanPurpose"`
	LoanType               LoanType      `json:"loanType"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks every numeric attribute against its domain. All violations are
// reported in one error wrapping ErrInputOutOfRange. Categorical values are checked by the
// encoder against the schema's closed sets.
func (p ApplicantProfile) Validate() error {
	var violations []string

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInputOutOfRange, err)
		}
		for _, fe := range verrs {
			violations = append(violations, describeViolation(fe))
		}
	}

	// gte=0 accepts +Inf
	if math.IsInf(p.Income, 0) {
		violations = append(violations, "income must be finite")
	}
	if math.IsInf(p.LoanAmount, 0) {
		violations = append(violations, "loanAmount must be finite")
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", ErrInputOutOfRange, strings.Join(violations, "; "))
	}
	return nil
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s check", fe.Field(), fe.Tag())
	}
}

// Fingerprint is a stable sha256 of the profile's fields. It identifies identical
// applications without storing their attributes.
func (p ApplicantProfile) Fingerprint() string {
	// struct field order is fixed, so the encoding is canonical
	raw, _ := json.Marshal(p)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
