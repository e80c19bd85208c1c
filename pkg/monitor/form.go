package monitor

import (
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/optimistic"
)

// formState is an open create or edit form. value builds the entity from
// the bound fields.
type formState[T any] struct {
	Kind  optimistic.Kind
	Form  *huh.Form
	Err   string // server-side failure shown above the fields
	value func() T
}

// Value returns the entity as currently entered.
func (fs *formState[T]) Value() T { return fs.value() }

// fieldError returns the first message for field from a params validation
// error, or nil.
func fieldError(err error, field string) error {
	var fe models.FieldErrors
	if !errors.As(err, &fe) {
		return nil
	}
	if msg := fe.First(field); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func formTitle(kind optimistic.Kind, name string) string {
	if kind == optimistic.KindUpdate {
		return "Edit " + name
	}
	return "New " + name
}

// authorFields holds the values bound to an author form.
type authorFields struct {
	Name     string
	Location string
}

func newAuthorForm(kind optimistic.Kind, a models.Author) *formState[models.Author] {
	f := &authorFields{Name: a.Name, Location: a.Location}
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Name").
			Value(&f.Name).
			Placeholder("Ursula K. Le Guin").
			Validate(func(s string) error {
				return fieldError(models.NewAuthorParams{Name: s}.Validate(), "name")
			}),
		huh.NewInput().
			Title("Location").
			Value(&f.Location).
			Placeholder("Optional"),
	).Title(formTitle(kind, "Author")))
	form.WithTheme(huh.ThemeDracula())

	return &formState[models.Author]{
		Kind: kind,
		Form: form,
		value: func() models.Author {
			out := a
			out.Name = f.Name
			out.Location = f.Location
			return out
		},
	}
}

// bookFields holds the values bound to a book form.
type bookFields struct {
	Title    string
	AuthorID string
}

func newBookForm(kind optimistic.Kind, b models.CompleteBook, authors []models.Author) *formState[models.CompleteBook] {
	f := &bookFields{Title: b.Title, AuthorID: b.AuthorID}
	if f.AuthorID == "" && len(authors) > 0 {
		f.AuthorID = authors[0].ID
	}

	options := make([]huh.Option[string], 0, len(authors))
	for _, a := range authors {
		options = append(options, huh.NewOption(a.Name, a.ID))
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Value(&f.Title).
			Placeholder("The Dispossessed").
			Validate(func(s string) error {
				return fieldError(models.NewBookParams{Title: s, AuthorID: "-"}.Validate(), "title")
			}),
		huh.NewSelect[string]().
			Title("Author").
			Options(options...).
			Value(&f.AuthorID).
			Validate(func(s string) error {
				if s == "" {
					return errors.New("Required")
				}
				return nil
			}),
	).Title(formTitle(kind, "Book")))
	form.WithTheme(huh.ThemeDracula())

	return &formState[models.CompleteBook]{
		Kind: kind,
		Form: form,
		value: func() models.CompleteBook {
			out := b
			out.Title = f.Title
			if out.AuthorID != f.AuthorID {
				out.Author = nil
			}
			out.AuthorID = f.AuthorID
			return out
		},
	}
}
