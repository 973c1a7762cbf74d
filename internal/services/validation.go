package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldMessages maps "Field.tag" to the message shown to the dashboard
var fieldMessages = map[string]string{
	"Name.required":        "Name is required",
	"Email.required":       "Email is required",
	"Email.email":          "Invalid email format",
	"Phone.required":       "Phone is required",
	"LoanAmount.required":  "Loan amount must be greater than 0",
	"LoanAmount.gt":        "Loan amount must be greater than 0",
	"LoanType.required":    "Loan type must be one of: Secured Loan, Unsecured Loan",
	"LoanType.oneof":       "Loan type must be one of: Secured Loan, Unsecured Loan",
	"MonthlyIncome.gte":    "Monthly income cannot be negative",
	"Status.required":      "Invalid status",
	"Status.oneof":         "Invalid status",
	"Amount.required":      "Payment amount must be greater than 0",
	"Amount.gt":            "Payment amount must be greater than 0",
	"Method.oneof":         "Payment method must be one of: cash, eft, card, debit-order, bank-deposit",
	"Content.required":     "Note content is required",
	"NoteType.oneof":       "Note type must be one of: general, payment, status_change",
	"IDNumber.required":    "ID number is required",
	"Terms.required":       "Terms and conditions must be accepted",
	"File.required":        "File is required",
	"Password.required":    "Password is required",
	"Password.min":         "Password must be at least 8 characters",
	"NewPassword.required": "New password is required",
	"NewPassword.min":      "Password must be at least 8 characters",
	"Role.oneof":           "Role must be one of: admin, manager, user",
	"Category.oneof":       "Category must be one of: payslip, id_document, bank_statement, collateral, other",
}

// validateStruct runs the validator and turns its field errors into a ValidationError
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	seen := make(map[string]bool)
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", fe.Field())
		}
		if !seen[msg] {
			seen[msg] = true
			messages = append(messages, msg)
		}
	}
	return NewValidationError(messages...)
}

// dateLayouts are the date formats accepted from forms and the dashboard
var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "02/01/2006"}

// parseDate parses a date field; an empty value returns the zero time.
func parseDate(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewValidationError(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field))
}
