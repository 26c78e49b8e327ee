package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bookshare/library"

	"github.com/spf13/pflag"
)

// manifestEntry describes one book in <dir>/catalog.json. Paths are relative
// to the manifest's directory.
type manifestEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Cover       string `json:"cover"`
	File        string `json:"file"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("import_books", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	booksDir := flags.StringP("dir", "d", "books", "directory holding catalog.json and the files it names")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := library.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	log := library.NewLogger(cfg.LogLevel, stderr)

	manager, err := library.NewLibraryManager(cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening session: %v\n", err)
		return 1
	}
	defer manager.Close()

	if !manager.Auth().State().IsAuthenticated {
		fmt.Fprintln(stderr, "Not logged in. Run 'bookshare login' first.")
		return 1
	}

	entries, err := readManifest(filepath.Join(*booksDir, "catalog.json"))
	if err != nil {
		fmt.Fprintf(stderr, "Error reading manifest: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Importing %d books from %s...\n", len(entries), *booksDir)

	ctx := context.Background()
	dash := manager.Dashboard()
	var imported []library.Book
	errorCount := 0

	for _, e := range entries {
		fmt.Fprintf(stdout, "Importing: %s... ", e.Title)

		res, err := importOne(ctx, dash, *booksDir, e)
		if err != nil {
			fmt.Fprintf(stdout, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		if !res.Success {
			fmt.Fprintf(stdout, "ERROR - %s\n", res.Message)
			errorCount++
			continue
		}

		// The backend may acknowledge a create without echoing the book.
		if res.Data == nil {
			fmt.Fprintln(stdout, "SUCCESS")
			imported = append(imported, library.Book{Title: e.Title, Description: e.Description, Genre: e.Genre})
			continue
		}
		fmt.Fprintf(stdout, "SUCCESS (ID: %s)\n", res.Data.ID)
		imported = append(imported, *res.Data)
	}

	fmt.Fprintf(stdout, "\nImport complete!\n")
	fmt.Fprintf(stdout, "Successfully imported: %d books\n", len(imported))
	fmt.Fprintf(stdout, "Errors: %d\n", errorCount)

	if len(imported) > 0 {
		fmt.Fprintln(stdout, "\nImported books:")
		fmt.Fprintf(stdout, "%-24s %-30s %-20s %-12s\n", "ID", "Title", "Author", "Genre")
		fmt.Fprintln(stdout, strings.Repeat("-", 89))
		for _, b := range imported {
			fmt.Fprintln(stdout, library.PrettyBook(&b))
		}
	}
	if errorCount > 0 {
		return 1
	}
	return 0
}

func readManifest(path string) ([]manifestEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []manifestEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return entries, nil
}

func importOne(ctx context.Context, dash *library.Dashboard, dir string, e manifestEntry) (library.Result[*library.Book], error) {
	var none library.Result[*library.Book]
	if strings.TrimSpace(e.Title) == "" {
		return none, fmt.Errorf("entry has no title")
	}

	payload := library.CreateBookPayload{
		Title:       e.Title,
		Description: e.Description,
		Genre:       e.Genre,
	}
	for _, up := range []struct {
		path string
		dst  **library.Upload
	}{
		{e.Cover, &payload.CoverImage},
		{e.File, &payload.File},
	} {
		if up.path == "" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, filepath.Clean(up.path)))
		if err != nil {
			return none, fmt.Errorf("file not accessible: %w", err)
		}
		defer f.Close()
		*up.dst = &library.Upload{Filename: filepath.Base(up.path), Content: f}
	}

	return dash.Create(ctx, payload), nil
}
