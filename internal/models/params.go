package models

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Minimum lengths enforced on user input.
const (
	MinAuthorNameLength = 5
	MinBookTitleLength  = 3
)

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// First returns the first message for field, or "".
func (fe FieldErrors) First(field string) string {
	if len(fe[field]) == 0 {
		return ""
	}
	return fe[field][0]
}

// Error joins all messages, sorted by field for stable output.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(fe[f], "; ")))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func minLength(fe FieldErrors, field, value string, n int) {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		fe.Add(field, fmt.Sprintf("String must contain at least %d character(s)", n))
	}
}

func required(fe FieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		fe.Add(field, "Required")
	}
}

// NewAuthorParams is the user-supplied part of a new author.
type NewAuthorParams struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Validate checks the author name length.
func (p NewAuthorParams) Validate() error {
	fe := FieldErrors{}
	minLength(fe, "name", p.Name, MinAuthorNameLength)
	return fe.orNil()
}

// Author builds the record owned by userID.
func (p NewAuthorParams) Author(userID string) Author {
	return Author{Name: strings.TrimSpace(p.Name), Location: strings.TrimSpace(p.Location), UserID: userID}
}

// UpdateAuthorParams replaces an existing author's fields.
type UpdateAuthorParams struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Validate requires an id and checks the name length.
func (p UpdateAuthorParams) Validate() error {
	fe := FieldErrors{}
	required(fe, "id", p.ID)
	minLength(fe, "name", p.Name, MinAuthorNameLength)
	return fe.orNil()
}

// Trimmed returns p with surrounding whitespace removed, as it is stored.
func (p UpdateAuthorParams) Trimmed() UpdateAuthorParams {
	p.Name = strings.TrimSpace(p.Name)
	p.Location = strings.TrimSpace(p.Location)
	return p
}

// NewBookParams is the user-supplied part of a new book.
type NewBookParams struct {
	Title    string `json:"title"`
	AuthorID string `json:"authorId"`
}

// Validate checks the title length and requires an author.
func (p NewBookParams) Validate() error {
	fe := FieldErrors{}
	minLength(fe, "title", p.Title, MinBookTitleLength)
	minLength(fe, "authorId", p.AuthorID, 1)
	return fe.orNil()
}

// Book builds the record owned by userID.
func (p NewBookParams) Book(userID string) Book {
	return Book{Title: strings.TrimSpace(p.Title), AuthorID: strings.TrimSpace(p.AuthorID), UserID: userID}
}

// UpdateBookParams replaces an existing book's fields.
type UpdateBookParams struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	AuthorID string `json:"authorId"`
}

// Validate requires an id. Title and author follow the create rules.
func (p UpdateBookParams) Validate() error {
	fe := FieldErrors{}
	required(fe, "id", p.ID)
	minLength(fe, "title", p.Title, MinBookTitleLength)
	required(fe, "authorId", p.AuthorID)
	return fe.orNil()
}

// Trimmed returns p with surrounding whitespace removed, as it is stored.
func (p UpdateBookParams) Trimmed() UpdateBookParams {
	p.Title = strings.TrimSpace(p.Title)
	p.AuthorID = strings.TrimSpace(p.AuthorID)
	return p
}

// MaxProfileNameLength caps the optional display name.
const MaxProfileNameLength = 100

// ProfileParams changes the optional profile fields of the signed-in user.
// Nil fields keep their stored value; an empty string clears the field.
type ProfileParams struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Validate checks the name length and that a non-empty email has a local
// part and a domain.
func (p ProfileParams) Validate() error {
	fe := FieldErrors{}
	if p.Name != nil && utf8.RuneCountInString(strings.TrimSpace(*p.Name)) > MaxProfileNameLength {
		fe.Add("name", fmt.Sprintf("String must contain at most %d character(s)", MaxProfileNameLength))
	}
	if p.Email != nil {
		if email := strings.TrimSpace(*p.Email); email != "" {
			local, domain, ok := strings.Cut(email, "@")
			if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
				fe.Add("email", "Invalid email")
			}
		}
	}
	return fe.orNil()
}

// Apply returns u with the set fields replaced, trimmed.
func (p ProfileParams) Apply(u User) User {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		u.Email = strings.TrimSpace(*p.Email)
	}
	return u
}

// Credential length limits.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 31
	MinPasswordLength = 6
	MaxPasswordLength = 255
)

// AuthParams are the credentials submitted to sign up or sign in.
type AuthParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks credential lengths. Usernames are limited to letters,
// digits, '-' and '_'.
func (p AuthParams) Validate() error {
	fe := FieldErrors{}
	username := strings.TrimSpace(p.Username)
	n := utf8.RuneCountInString(username)
	switch {
	case n < MinUsernameLength:
		fe.Add("username", fmt.Sprintf("String must contain at least %d character(s)", MinUsernameLength))
	case n > MaxUsernameLength:
		fe.Add("username", fmt.Sprintf("String must contain at most %d character(s)", MaxUsernameLength))
	case strings.IndexFunc(username, invalidUsernameRune) >= 0:
		fe.Add("username", "Only letters, digits, '-' and '_' are allowed")
	}
	n = utf8.RuneCountInString(p.Password)
	switch {
	case n < MinPasswordLength:
		fe.Add("password", fmt.Sprintf("String must contain at least %d character(s)", MinPasswordLength))
	case n > MaxPasswordLength:
		fe.Add("password", fmt.Sprintf("String must contain at most %d character(s)", MaxPasswordLength))
	}
	return fe.orNil()
}

func invalidUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		return false
	}
	return true
}
