package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"bookshare/library"

	"github.com/spf13/cobra"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.shell(cmd.Context())
		},
	}
}

func (a *app) shell(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Logins and logouts from another terminal show up here too.
	a.mgr.WatchSession(ctx)
	var last atomic.Bool
	last.Store(a.mgr.Auth().State().IsAuthenticated)
	cancel := a.mgr.Auth().OnChange(func(s library.AuthState) {
		if last.Swap(s.IsAuthenticated) == s.IsAuthenticated {
			return
		}
		fmt.Fprint(a.out, "\n[session] ")
		a.printAuthState(s)
	})
	defer cancel()

	dash := a.mgr.Dashboard()

	fmt.Fprintln(a.out, "Welcome to bookshare!")
	fmt.Fprintln(a.out, "Available commands:")
	fmt.Fprintln(a.out, "  Account: register, login, logout, whoami")
	fmt.Fprintln(a.out, "  Catalog: list books, show book, download book")
	fmt.Fprintln(a.out, "  Dashboard: my books, add book, edit book, delete book")
	fmt.Fprintln(a.out, "  System: exit")
	a.printAuthState(a.mgr.Auth().State())

	for {
		cmd, ok := a.prompt("\n> ")
		if !ok {
			break
		}

		var err error
		switch cmd {
		case "register":
			err = a.register(ctx, "", "")
		case "login":
			err = a.login(ctx, "")
		case "logout":
			a.mgr.Logout()
		case "whoami":
			a.printAuthState(a.mgr.Auth().State())
		case "list books":
			err = a.listBooks(a.mgr.ListBooks(ctx))
		case "show book":
			err = a.withBookID(func(id string) error { return a.showBook(ctx, id) })
		case "download book":
			err = a.withBookID(func(id string) error {
				out, _ := a.prompt("Save as (empty for <title>.pdf): ")
				return a.download(ctx, id, out)
			})
		case "my books":
			res := dash.Load(ctx)
			if !res.Success {
				err = errors.New(res.Message)
				break
			}
			a.printBooks(dash.Books())
		case "add book":
			err = a.handleAddBook(ctx, dash)
		case "edit book":
			err = a.handleEditBook(ctx, dash)
		case "delete book":
			err = a.handleDeleteBook(ctx, dash)
		case "exit":
			fmt.Fprintln(a.out, "Goodbye!")
			return
		case "":
		default:
			fmt.Fprintln(a.out, "Unknown command. Type one of the available commands listed above.")
		}
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

func (a *app) withBookID(fn func(id string) error) error {
	id, ok := a.prompt("Book ID: ")
	if !ok || id == "" {
		return nil
	}
	return fn(id)
}

func (a *app) promptBookFlags(f *bookFlags, optional bool) bool {
	suffix := ": "
	if optional {
		suffix = " (empty to keep): "
	}
	for _, field := range []struct {
		label string
		dst   *string
	}{
		{"Title", &f.title},
		{"Description", &f.description},
		{"Genre", &f.genre},
		{"Path to cover image (optional)", &f.cover},
		{"Path to book file (optional)", &f.file},
	} {
		s, ok := a.prompt(field.label + suffix)
		if !ok {
			return false
		}
		*field.dst = s
	}
	return true
}

func (a *app) handleAddBook(ctx context.Context, dash *library.Dashboard) error {
	var f bookFlags
	if !a.promptBookFlags(&f, false) {
		return nil
	}
	cover, file, closeAll, err := f.uploads()
	if err != nil {
		return fmt.Errorf("file error: %w", err)
	}
	defer closeAll()

	res := dash.Create(ctx, library.CreateBookPayload{
		Title:       f.title,
		Description: f.description,
		Genre:       f.genre,
		CoverImage:  cover,
		File:        file,
	})
	return report(a, res)
}

func (a *app) handleEditBook(ctx context.Context, dash *library.Dashboard) error {
	return a.withBookID(func(id string) error {
		var f bookFlags
		if !a.promptBookFlags(&f, true) {
			return nil
		}
		cover, file, closeAll, err := f.uploads()
		if err != nil {
			return fmt.Errorf("file error: %w", err)
		}
		defer closeAll()

		return report(a, dash.Update(ctx, id, library.UpdateBookPayload{
			Title:       f.title,
			Description: f.description,
			Genre:       f.genre,
			CoverImage:  cover,
			File:        file,
		}))
	})
}

func (a *app) handleDeleteBook(ctx context.Context, dash *library.Dashboard) error {
	return a.withBookID(func(id string) error {
		if !a.confirm("Are you sure you want to delete this book? [y/N]: ") {
			fmt.Fprintln(a.out, "Cancelled.")
			return nil
		}
		return report(a, dash.Delete(ctx, id))
	})
}
