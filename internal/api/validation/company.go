// Package validation holds the shared validator with the company-config rules registered.
package validation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

// ATSTypes are the vendor keys the ATS strategy understands
var ATSTypes = []string{"ashby", "greenhouse", "lever", "smartrecruiters", "workday"}

// CompanyIDPattern keeps ids safe for URLs, log fields and Redis keys
var CompanyIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

var (
	shared     *validator.Validate
	sharedOnce sync.Once
)

// Validator returns the process-wide validator with every custom rule registered
func Validator() *validator.Validate {
	sharedOnce.Do(func() {
		shared = validator.New()
		RegisterCompanyValidators(shared)
	})
	return shared
}

// RegisterCompanyValidators registers the rules used by models.CompanyConfig
func RegisterCompanyValidators(v *validator.Validate) {
	v.RegisterValidation("company_id", ValidateCompanyID)
	v.RegisterValidation("strategy", ValidateStrategy)
	v.RegisterValidation("ats_type", ValidateATSType)
}

func ValidateCompanyID(fl validator.FieldLevel) bool {
	return CompanyIDPattern.MatchString(fl.Field().String())
}

// ValidateStrategy accepts the strategy names of the cascade
func ValidateStrategy(fl validator.FieldLevel) bool {
	return utils.Contains(config.DefaultStrategyOrder, strings.ToLower(fl.Field().String()))
}

func ValidateATSType(fl validator.FieldLevel) bool {
	return utils.Contains(ATSTypes, strings.ToLower(fl.Field().String()))
}
