package domain

import (
	"regexp"
	"strings"
)

const (
	MaxNameLength    = 255
	MaxContactLength = 512
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Borrower struct {
	ID          int64
	Name        string
	ContactInfo string
}

type BorrowerInput struct {
	Name        string `json:"name" yaml:"name"`
	ContactInfo string `json:"contact_info" yaml:"contact_info"`
}

func (in BorrowerInput) Normalize() BorrowerInput {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	return in
}

// Validate requires a name. Contact info is free text unless it contains
// an '@', in which case it has to look like an email address.
func (in BorrowerInput) Validate() error {
	in = in.Normalize()
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if err := checkLength("name", in.Name, MaxNameLength); err != nil {
		return err
	}
	if err := checkLength("contactInfo", in.ContactInfo, MaxContactLength); err != nil {
		return err
	}
	if strings.Contains(in.ContactInfo, "@") && !emailPattern.MatchString(in.ContactInfo) {
		return &ValidationError{Field: "contactInfo", Reason: "is not a valid email address"}
	}
	return nil
}

// NameKey is the case-insensitive form used for uniqueness.
func NameKey(name string) string {
	return SearchKey(name)
}

type BorrowerFilter struct {
	// Search matches name or contact info, case-insensitively.
	Search string
}
