package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bookshare/library"

	"github.com/spf13/cobra"
)

func newRegisterCmd(a *app) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.register(cmd.Context(), name, email)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func (a *app) register(ctx context.Context, name, email string) error {
	if err := a.promptIfEmpty(&name, "Name: "); err != nil {
		return err
	}
	if err := a.promptIfEmpty(&email, "Email: "); err != nil {
		return err
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	return report(a, a.mgr.Register(ctx, name, email, password))
}

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.login(cmd.Context(), email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func (a *app) login(ctx context.Context, email string) error {
	if err := a.promptIfEmpty(&email, "Email: "); err != nil {
		return err
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return err
	}
	return report(a, a.mgr.Login(ctx, email, password))
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.mgr.Logout()
			fmt.Fprintln(a.out, "Logged out.")
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.printAuthState(a.mgr.Auth().State())
		},
	}
}

func (a *app) printAuthState(s library.AuthState) {
	if !s.IsAuthenticated {
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	u := s.User
	switch {
	case u.Name != "":
		fmt.Fprintf(a.out, "Logged in as %s <%s> (ID: %s)\n", u.Name, u.Email, u.ID)
	default:
		fmt.Fprintf(a.out, "Logged in as %s (ID: %s)\n", u.Email, u.ID)
	}
}

// ------------------ books ------------------

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse the catalog and manage your books",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every book in the catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listBooks(a.mgr.ListBooks(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "mine",
			Short: "List the books you uploaded",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listBooks(a.mgr.ListOwnBooks(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one book",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.showBook(cmd.Context(), args[0])
			},
		},
		newCreateBookCmd(a),
		newUpdateBookCmd(a),
		newDeleteBookCmd(a),
		newDownloadBookCmd(a),
	)
	return cmd
}

func (a *app) listBooks(res library.Result[[]library.Book]) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	a.printBooks(res.Data)
	return nil
}

func (a *app) printBooks(books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(a.out, "No books found.")
		return
	}
	fmt.Fprintf(a.out, "%-24s %-30s %-20s %-12s\n", "ID", "Title", "Author", "Genre")
	fmt.Fprintln(a.out, strings.Repeat("-", 89))
	for i := range books {
		fmt.Fprintln(a.out, library.PrettyBook(&books[i]))
	}
}

func (a *app) showBook(ctx context.Context, id string) error {
	res := a.mgr.GetBook(ctx, id)
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprint(a.out, library.BookDetails(res.Data))
	return nil
}

type bookFlags struct {
	title       string
	description string
	genre       string
	cover       string
	file        string
}

func (f *bookFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "book title")
	cmd.Flags().StringVar(&f.description, "description", "", "book description")
	cmd.Flags().StringVar(&f.genre, "genre", "", "book genre")
	cmd.Flags().StringVar(&f.cover, "cover", "", "path to the cover image")
	cmd.Flags().StringVar(&f.file, "file", "", "path to the book file")
}

// uploads opens the cover and book files named by f. The returned closer must
// be called once the request has been sent.
func (f *bookFlags) uploads() (cover, file *library.Upload, closeAll func(), err error) {
	var opened []*os.File
	closeAll = func() {
		for _, fh := range opened {
			fh.Close()
		}
	}
	open := func(path string) (*library.Upload, error) {
		if strings.TrimSpace(path) == "" {
			return nil, nil
		}
		fh, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		opened = append(opened, fh)
		return &library.Upload{Filename: filepath.Base(path), Content: fh}, nil
	}

	if cover, err = open(f.cover); err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	if file, err = open(f.file); err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	return cover, file, closeAll, nil
}

func newCreateBookCmd(a *app) *cobra.Command {
	var f bookFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Upload a new book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.promptIfEmpty(&f.title, "Title: "); err != nil {
				return err
			}
			cover, file, closeAll, err := f.uploads()
			if err != nil {
				return fmt.Errorf("file error: %w", err)
			}
			defer closeAll()

			res := a.mgr.CreateBook(cmd.Context(), library.CreateBookPayload{
				Title:       f.title,
				Description: f.description,
				Genre:       f.genre,
				CoverImage:  cover,
				File:        file,
			})
			if err := report(a, res); err != nil {
				return err
			}
			if res.Data != nil {
				fmt.Fprintf(a.out, "Book ID: %s\n", res.Data.ID)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newUpdateBookCmd(a *app) *cobra.Command {
	var f bookFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change one of your books; only the flags you pass are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cover, file, closeAll, err := f.uploads()
			if err != nil {
				return fmt.Errorf("file error: %w", err)
			}
			defer closeAll()

			return report(a, a.mgr.UpdateBook(cmd.Context(), args[0], library.UpdateBookPayload{
				Title:       f.title,
				Description: f.description,
				Genre:       f.genre,
				CoverImage:  cover,
				File:        file,
			}))
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteBookCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !a.confirm("Are you sure you want to delete this book? [y/N]: ") {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			return report(a, a.mgr.DeleteBook(cmd.Context(), args[0]))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) confirm(label string) bool {
	s, ok := a.prompt(label)
	if !ok {
		return false
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}

func newDownloadBookCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a book's file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.download(cmd.Context(), args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: <title>.pdf)")
	return cmd
}

func (a *app) download(ctx context.Context, id, out string) error {
	res := a.mgr.GetBook(ctx, id)
	if !res.Success {
		return errors.New(res.Message)
	}
	book := res.Data
	if out == "" {
		out = safeFilename(book.Title) + ".pdf"
	}
	out = filepath.Clean(out)

	// Download next to the target and rename on success, so a failed
	// download never clobbers an existing file.
	f, err := os.CreateTemp(filepath.Dir(out), ".bookshare-*.part")
	if err != nil {
		return err
	}
	tmp := f.Name()
	dl := a.mgr.DownloadBook(ctx, *book, f)
	cerr := f.Close()
	if !dl.Success {
		os.Remove(tmp)
		return errors.New(dl.Message)
	}
	if cerr != nil {
		os.Remove(tmp)
		return cerr
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return err
	}
	fmt.Fprintf(a.out, "Saved %q to %s (%d bytes)\n", book.Title, out, dl.Data)
	return nil
}

func safeFilename(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "book"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, title)
}
