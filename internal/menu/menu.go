// Package menu resolves the canonical menu used to reconcile OCR candidates.
// Sources are tried in order; a source that fails or yields nothing falls
// through to the next, and an exhausted chain is an empty menu.
package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/villageroaster/bakeboard/internal/config"
	"github.com/villageroaster/bakeboard/pkg/notion"
)

// Source loads an ordered list of menu names.
type Source interface {
	Load(ctx context.Context) ([]string, error)
	String() string
}

// Chain tries each source in order and returns the first non-empty menu.
// Errors are logged and never returned.
type Chain []Source

func (c Chain) Load(ctx context.Context) ([]string, error) {
	log := zap.L().With(zap.String("component", "menu"))
	for _, src := range c {
		items, err := src.Load(ctx)
		if err != nil {
			log.Warn("menu: source failed", zap.String("source", src.String()), zap.Error(err))
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return []string{}, nil
}

func (c Chain) String() string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.String()
	}
	return "chain[" + strings.Join(names, ",") + "]"
}

// Inline parses a JSON array held in configuration.
type Inline string

func (s Inline) Load(context.Context) ([]string, error) {
	return parseJSON([]byte(s))
}

func (s Inline) String() string { return "inline" }

// parseJSON accepts an array of arbitrary scalars, stringifying each,
// trimming, and dropping empties. Anything other than an array is an error.
func parseJSON(data []byte) ([]string, error) {
	var arr []any
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, eris.Wrap(err, "menu: parse json array")
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		var s string
		switch x := v.(type) {
		case nil:
			continue
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			s = fmt.Sprint(x)
		}
		out = appendName(out, s)
	}
	return out, nil
}

func appendName(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// Notion reads titles from a Notion database.
type Notion struct {
	Client   notion.Client
	Database string
	Property string
}

func (s *Notion) Load(ctx context.Context) ([]string, error) {
	items, err := notion.QueryMenu(ctx, s.Client, s.Database, s.Property)
	if err != nil {
		if code := notion.StatusCode(err); code != 0 {
			return nil, eris.Wrapf(err, "menu: notion returned status %d", code)
		}
		return nil, err
	}
	return items, nil
}

func (s *Notion) String() string { return "notion:" + s.Database }

// FromConfig builds the source chain: inline items, then the file, then the
// Notion database. The Notion source is wrapped in a TTL cache.
func FromConfig(cfg config.MenuConfig) Source {
	var chain Chain
	if strings.TrimSpace(cfg.Items) != "" {
		chain = append(chain, Inline(cfg.Items))
	}
	if cfg.File != "" {
		chain = append(chain, File(cfg.File))
	}
	if cfg.NotionToken != "" && cfg.NotionDatabase != "" {
		var src Source = &Notion{
			Client:   notion.NewClient(cfg.NotionToken),
			Database: cfg.NotionDatabase,
			Property: cfg.NotionProperty,
		}
		if cfg.CacheTTLSecs > 0 {
			src = NewCache(src, time.Duration(cfg.CacheTTLSecs)*time.Second)
		}
		chain = append(chain, src)
	}
	return chain
}
