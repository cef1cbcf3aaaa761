package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PageTitle returns the plain text of the named title property. With an
// empty property name the page's first title property is used.
func PageTitle(page notionapi.Page, property string) string {
	if property != "" {
		if tp, ok := page.Properties[property].(*notionapi.TitleProperty); ok {
			return richText(tp.Title)
		}
		return ""
	}
	for _, p := range page.Properties {
		if tp, ok := p.(*notionapi.TitleProperty); ok {
			return richText(tp.Title)
		}
	}
	return ""
}

func richText(rt []notionapi.RichText) string {
	var sb strings.Builder
	for _, t := range rt {
		sb.WriteString(t.PlainText)
	}
	return strings.TrimSpace(sb.String())
}

// QueryMenu returns the non-empty titles of every page in the database, in
// the order Notion returns them.
func QueryMenu(ctx context.Context, c Client, dbID, property string) ([]string, error) {
	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query menu")
	}

	items := make([]string, 0, len(pages))
	for _, p := range pages {
		if title := PageTitle(p, property); title != "" {
			items = append(items, title)
		}
	}
	return items, nil
}

// ImportItems creates a page for each item not already present in the
// database (case-insensitive title match). It returns the number created.
func ImportItems(ctx context.Context, c Client, dbID, property string, items []string) (int, error) {
	if property == "" {
		property = "Name"
	}
	existing, err := QueryMenu(ctx, c, dbID, property)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[strings.ToLower(e)] = true
	}

	created := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		_, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: notionapi.Properties{
				property: notionapi.TitleProperty{
					Title: []notionapi.RichText{{Text: &notionapi.Text{Content: item}}},
				},
			},
		})
		if err != nil {
			return created, eris.Wrapf(err, "notion: import %q", item)
		}
		seen[key] = true
		created++
	}

	zap.L().Info("notion: menu import complete",
		zap.String("database", dbID),
		zap.Int("created", created),
		zap.Int("skipped", len(items)-created),
	)
	return created, nil
}
