package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/villageroaster/bakeboard/internal/menu"
	"github.com/villageroaster/bakeboard/pkg/notion"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Print the resolved menu",
	RunE: func(cmd *cobra.Command, _ []string) error {
		src := menu.FromConfig(cfg.Menu)
		names, err := src.Load(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "load menu")
		}
		if len(names) == 0 {
			fmt.Fprintln(os.Stderr, "Menu is empty; OCR candidates will be used as-is.")
			return nil
		}
		formatMenu(os.Stdout, names)
		return nil
	},
}

var menuImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add items from a local menu file to the Notion menu database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Menu.NotionToken == "" || cfg.Menu.NotionDatabase == "" {
			return eris.New("menu import requires menu.notion_token and menu.notion_database")
		}

		items, err := menu.File(args[0]).Load(ctx)
		if err != nil {
			return err
		}

		client := notion.NewClient(cfg.Menu.NotionToken)
		created, err := notion.ImportItems(ctx, client, cfg.Menu.NotionDatabase, cfg.Menu.NotionProperty, items)
		if err != nil {
			return eris.Wrap(err, "menu import")
		}

		fmt.Fprintf(os.Stdout, "Imported %d of %d items.\n", created, len(items))
		return nil
	},
}

func init() {
	menuCmd.AddCommand(menuImportCmd)
	rootCmd.AddCommand(menuCmd)
}

func formatMenu(w io.Writer, names []string) {
	for _, n := range names {
		_, _ = fmt.Fprintln(w, n)
	}
	_, _ = fmt.Fprintf(w, "\n%d items\n", len(names))
}
