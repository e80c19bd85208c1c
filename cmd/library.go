package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/optimistic"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/shelfclient"
)

// mutationResult is the json/yaml output of a create, update or delete: the
// record the server returned and the settled list.
type mutationResult[T any] struct {
	Record T   `json:"record" yaml:"record"`
	List   []T `json:"list" yaml:"list"`
}

// loadController builds a controller for backend and seeds it with the
// authoritative list.
func loadController[T optimistic.Entity[T]](cmd *cobra.Command, s *session, name string, backend optimistic.Backend[T]) (*optimistic.Controller[T], error) {
	ctrlLog, noticeLog := loggers(cmd)
	ctrl := optimistic.NewController(backend, optimistic.Options[T]{
		Name:         name,
		DeletePolicy: s.cfg.Policy(),
		Notifier:     optimistic.LogNotifier{Logger: noticeLog},
		Logger:       ctrlLog,
	})
	if err := ctrl.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// mutate runs intent to completion and prints the settled list.
func mutate[T optimistic.Entity[T]](cmd *cobra.Command, ctrl *optimistic.Controller[T], intent optimistic.Intent[T], table func([]T) string) error {
	st, err := ctrl.Do(cmd.Context(), intent)
	if err != nil {
		return err
	}
	list := ctrl.View()
	return output.Render(cmd.OutOrStdout(), outputFormat, mutationResult[T]{Record: st.Record, List: list}, func() string {
		return table(list)
	})
}

// findRow returns the confirmed row with id.
func findRow[T optimistic.Entity[T]](ctrl *optimistic.Controller[T], noun, id string) (T, error) {
	for _, row := range ctrl.Confirmed() {
		if row.EntityID() == id {
			return row, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %s", shelfclient.ErrNotFound, noun, id)
}

// --- Authors ---

var authorsCmd = &cobra.Command{
	Use:     "authors",
	Aliases: []string{"author", "a"},
	Short:   "List and change authors",
	GroupID: "library",
}

func authorsController(cmd *cobra.Command) (*optimistic.Controller[models.Author], error) {
	s, err := signedIn(cmd)
	if err != nil {
		return nil, err
	}
	return loadController(cmd, s, "Author", s.client.Authors(s.transport))
}

var authorsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your authors",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := authorsController(cmd)
		if err != nil {
			return err
		}
		list := ctrl.View()
		return output.Render(cmd.OutOrStdout(), outputFormat, list, func() string {
			return output.AuthorsTable(list)
		})
	},
}

var authorsCreateCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"add"},
	Short:   "Add an author",
	Example: `  shelf authors create --name "Ursula K. Le Guin" --location Portland`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		location, _ := cmd.Flags().GetString("location")
		if err := (models.NewAuthorParams{Name: name, Location: location}).Validate(); err != nil {
			return err
		}

		ctrl, err := authorsController(cmd)
		if err != nil {
			return err
		}
		return mutate(cmd, ctrl, optimistic.Create(models.Author{Name: name, Location: location}), output.AuthorsTable)
	},
}

var authorsUpdateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	Short:   "Change an author's name or location",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := authorsController(cmd)
		if err != nil {
			return err
		}
		current, err := findRow(ctrl, "author", args[0])
		if err != nil {
			return err
		}

		next := current
		if cmd.Flags().Changed("name") {
			next.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("location") {
			next.Location, _ = cmd.Flags().GetString("location")
		}
		if err := (models.UpdateAuthorParams{ID: next.ID, Name: next.Name, Location: next.Location}).Validate(); err != nil {
			return err
		}
		return mutate(cmd, ctrl, optimistic.Update(next), output.AuthorsTable)
	},
}

var authorsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an author and their books",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := authorsController(cmd)
		if err != nil {
			return err
		}
		current, err := findRow(ctrl, "author", args[0])
		if err != nil {
			return err
		}
		return mutate(cmd, ctrl, optimistic.Delete(current), output.AuthorsTable)
	},
}

// --- Books ---

var booksCmd = &cobra.Command{
	Use:     "books",
	Aliases: []string{"book", "b"},
	Short:   "List and change books",
	GroupID: "library",
}

func booksController(cmd *cobra.Command) (*optimistic.Controller[models.CompleteBook], error) {
	s, err := signedIn(cmd)
	if err != nil {
		return nil, err
	}
	return loadController(cmd, s, "Book", s.client.Books(s.transport))
}

var booksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your books with their authors",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := booksController(cmd)
		if err != nil {
			return err
		}
		list := ctrl.View()
		return output.Render(cmd.OutOrStdout(), outputFormat, list, func() string {
			return output.BooksTable(list)
		})
	},
}

var booksCreateCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"add"},
	Short:   "Add a book",
	Example: `  shelf books create --title "The Dispossessed" --author <author-id>`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		authorID, _ := cmd.Flags().GetString("author")
		if err := (models.NewBookParams{Title: title, AuthorID: authorID}).Validate(); err != nil {
			return err
		}

		ctrl, err := booksController(cmd)
		if err != nil {
			return err
		}
		book := models.CompleteBook{Book: models.Book{Title: title, AuthorID: authorID}}
		return mutate(cmd, ctrl, optimistic.Create(book), output.BooksTable)
	},
}

var booksUpdateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	Short:   "Change a book's title or author",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := booksController(cmd)
		if err != nil {
			return err
		}
		current, err := findRow(ctrl, "book", args[0])
		if err != nil {
			return err
		}

		next := current
		if cmd.Flags().Changed("title") {
			next.Title, _ = cmd.Flags().GetString("title")
		}
		if cmd.Flags().Changed("author") {
			next.AuthorID, _ = cmd.Flags().GetString("author")
			if next.AuthorID != current.AuthorID {
				next.Author = nil
			}
		}
		if err := (models.UpdateBookParams{ID: next.ID, Title: next.Title, AuthorID: next.AuthorID}).Validate(); err != nil {
			return err
		}
		return mutate(cmd, ctrl, optimistic.Update(next), output.BooksTable)
	},
}

var booksDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a book",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := booksController(cmd)
		if err != nil {
			return err
		}
		current, err := findRow(ctrl, "book", args[0])
		if err != nil {
			return err
		}
		return mutate(cmd, ctrl, optimistic.Delete(current), output.BooksTable)
	},
}

func init() {
	authorsCreateCmd.Flags().String("name", "", "author name (at least 5 characters)")
	authorsCreateCmd.Flags().String("location", "", "where the author lives")
	authorsUpdateCmd.Flags().String("name", "", "new name")
	authorsUpdateCmd.Flags().String("location", "", "new location")
	authorsCmd.AddCommand(authorsListCmd, authorsCreateCmd, authorsUpdateCmd, authorsDeleteCmd)

	booksCreateCmd.Flags().String("title", "", "book title (at least 3 characters)")
	booksCreateCmd.Flags().String("author", "", "author id")
	booksUpdateCmd.Flags().String("title", "", "new title")
	booksUpdateCmd.Flags().String("author", "", "new author id")
	booksCmd.AddCommand(booksListCmd, booksCreateCmd, booksUpdateCmd, booksDeleteCmd)

	rootCmd.AddCommand(authorsCmd, booksCmd)
}
