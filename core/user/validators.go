package user

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/classgate/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your name or email"
)

// InitValidators registers the user validators & their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{}, ResetUserPassword{})

	for tag, text := range map[string]string{
		pwdMinLenTag:     pwdMinLenText,
		pwdNoSpaceTag:    pwdNoSpaceText,
		pwdNotAllNumTag:  pwdNotAllNumText,
		pwdComplexityTag: pwdComplexityText,
		pwdAttrSimTag:    pwdAttrSimText,
	} {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

// userStructValidation applies the password policy on NewUser and ResetUserPassword.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Name, usr.Email)
		}
	case ResetUserPassword:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Email)
		}
	}
}

// validatePassword reports the first broken rule of the password policy:
// min length, no whitespace, not all numeric, complexity, no similarity with user attributes.
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var digits int
	var hasUpper, hasLower bool
	for _, char := range runes {
		switch {
		case unicode.IsSpace(char):
			reportErr(pwdNoSpaceTag)
			return
		case unicode.IsDigit(char):
			digits++
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		}
	}
	if digits == len(runes) {
		reportErr(pwdNotAllNumTag)
		return
	}
	if !(hasUpper && hasLower && digits > 0 && specialRegex.MatchString(pwd)) {
		reportErr(pwdComplexityTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		attr = strings.ToLower(attr)
		if attr == "" {
			continue
		}
		// compare with the local part as well, "jane.doe" is closer to "JaneDoe1!" than "jane.doe@school.org"
		candidates := []string{attr}
		if i := strings.IndexByte(attr, '@'); i > 0 {
			candidates = append(candidates, attr[:i])
		}
		for _, c := range candidates {
			ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(c, "")).QuickRatio()
			if ratio >= pwdMaxSim {
				reportErr(pwdAttrSimTag)
				return
			}
		}
	}
}
