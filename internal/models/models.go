package models

// User is an account that owns authors and books.
type User struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Author is a writer record owned by one user.
type Author struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
	UserID   string `json:"userId" yaml:"user_id"`
}

// EntityID returns the author id.
func (a Author) EntityID() string { return a.ID }

// WithEntityID returns a copy of a with its id replaced.
func (a Author) WithEntityID(id string) Author {
	a.ID = id
	return a
}

// Merge returns a with the editable fields of p copied over, empty values
// included. The id is left alone and the owner only changes when p names one.
func (a Author) Merge(p Author) Author {
	a.Name = p.Name
	a.Location = p.Location
	if p.UserID != "" {
		a.UserID = p.UserID
	}
	return a
}

// Book is a title written by an author, owned by one user.
type Book struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	AuthorID string `json:"authorId" yaml:"author_id"`
	UserID   string `json:"userId" yaml:"user_id"`
}

// EntityID returns the book id.
func (b Book) EntityID() string { return b.ID }

// WithEntityID returns a copy of b with its id replaced.
func (b Book) WithEntityID(id string) Book {
	b.ID = id
	return b
}

// Merge returns b with the editable fields of p copied over, as Author.Merge.
func (b Book) Merge(p Book) Book {
	b.Title = p.Title
	b.AuthorID = p.AuthorID
	if p.UserID != "" {
		b.UserID = p.UserID
	}
	return b
}

// CompleteBook is a book with its author joined in.
type CompleteBook struct {
	Book   `yaml:",inline"`
	Author *Author `json:"author,omitempty" yaml:"author,omitempty"`
}

// EntityID returns the book id.
func (b CompleteBook) EntityID() string { return b.ID }

// WithEntityID returns a copy of b with its id replaced.
func (b CompleteBook) WithEntityID(id string) CompleteBook {
	b.ID = id
	return b
}

// Merge merges the book fields of p and takes p's author when set. A
// changed author id without a joined author drops the stale join.
func (b CompleteBook) Merge(p CompleteBook) CompleteBook {
	prevAuthor := b.AuthorID
	b.Book = b.Book.Merge(p.Book)
	switch {
	case p.Author != nil:
		a := *p.Author
		b.Author = &a
	case b.AuthorID != prevAuthor:
		b.Author = nil
	}
	return b
}

// AuthorName returns the joined author's name, or "" when not joined.
func (b CompleteBook) AuthorName() string {
	if b.Author == nil {
		return ""
	}
	return b.Author.Name
}

// JoinAuthor returns a Prepare hook that attaches the matching author from
// authors to a book, as the list view shows it while a mutation is pending.
func JoinAuthor(authors []Author) func(CompleteBook) CompleteBook {
	return func(b CompleteBook) CompleteBook {
		for _, a := range authors {
			if a.ID == b.AuthorID {
				a := a
				b.Author = &a
				return b
			}
		}
		return b
	}
}
