// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/textidx"
	"github.com/poiesic/textidx/config"
	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/ingestion"
	"github.com/poiesic/textidx/query"
	"github.com/poiesic/textidx/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "textidx",
		Usage: "Full-text index and boolean search for saved tabs, notes and bookmarks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides the config file)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Index one field of an entity, replacing its previous terms",
				Action: addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Identifier of the entity",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "ultimate-owner",
						Usage: "Identifier of the top-level container hits are attributed to",
					},
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Entity type (tabspace, tab, note, bookmark)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "field",
						Usage:    "Indexed field (title, url, name, content)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "content",
						Usage:    "Text to index; empty text removes the field",
						Required: true,
					},
				},
			},
			{
				Name:   "remove",
				Usage:  "Remove index records of an entity",
				Action: removeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Identifier of the entity",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Only remove records of this entity type",
					},
					&cli.StringFlag{
						Name:  "field",
						Usage: "Only remove this field (requires --type)",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Index JSON lines of add requests concurrently",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "File to read requests from (default: stdin)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the index",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of hits per page (default from config)",
					},
					&cli.StringFlag{
						Name:  "cursor",
						Usage: "Cursor token of the page to fetch",
					},
				},
			},
			{
				Name:   "check",
				Usage:  "Check the index structure and optionally repair it",
				Action: checkCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "repair",
						Usage: "Repair the problems found",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to check in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each repair",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 50 * time.Millisecond,
					},
				},
			},
		},
	}
}

// openDatabase opens the database selected by the global flags.
func openDatabase(c *cli.Context) (*textidx.Database, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	db, err := textidx.NewDatabase(c.String("db"), textidx.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func addCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	indexer, err := db.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	defer indexer.Release()

	req := ingestion.AddToIndexRequest{
		OwnerID:         c.String("owner"),
		UltimateOwnerID: c.String("ultimate-owner"),
		Content:         c.String("content"),
		EntityType:      core.EntityType(c.String("type")),
		Field:           core.Field(c.String("field")),
	}
	if err := indexer.AddToIndex(ctx, req); err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	record, err := db.IndexRepository().FindByKey(ctx, req.OwnerID, req.EntityType, req.Field)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(c.App.Writer, "%s: no indexable terms, record removed\n", core.CompoundKey(req.OwnerID, req.EntityType, req.Field))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %s\n", record.Key(), strings.Join(record.Terms, " "))
	return nil
}

func removeCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	indexer, err := db.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	defer indexer.Release()

	removed, err := indexer.RemoveFromIndex(ctx, ingestion.RemoveFromIndexRequest{
		OwnerID:    c.String("owner"),
		EntityType: core.EntityType(c.String("type")),
		Field:      core.Field(c.String("field")),
	})
	if err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "removed %d records\n", removed)
	return nil
}

func ingestCommand(c *cli.Context) error {
	input := c.App.Reader
	if path := c.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	indexer, err := db.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	defer indexer.Release()

	start := time.Now()
	submitted, rejected := 0, 0
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var req ingestion.AddToIndexRequest
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			rejected++
			slog.Warn("skipping malformed request", "line", line, "err", err)
			continue
		}
		if err := indexer.Submit(req); err != nil {
			rejected++
			slog.Warn("skipping request", "line", line, "err", err)
			continue
		}
		submitted++
	}
	indexer.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	stats := indexer.Stats()
	fmt.Fprintf(c.App.Writer, "submitted %d, indexed %d, failed %d, rejected %d in %v\n",
		submitted, stats.Processed, stats.Failed, rejected, time.Since(start).Round(time.Millisecond))
	if stats.Failed > 0 {
		return fmt.Errorf("%d requests failed", stats.Failed)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	text := strings.Join(c.Args().Slice(), " ")
	q, err := query.Parse(text)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	limit := c.Int("limit")
	if limit == 0 {
		limit = db.Config().Search.PageLimit
	}
	cursor := query.Begin(limit)
	if token := c.String("cursor"); token != "" {
		cursor, err = query.DecodeCursor(token)
		if err != nil {
			return err
		}
		if c.IsSet("limit") {
			cursor.PageLimit = limit
		}
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	page, err := searcher.Search(ctx, q, cursor)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, hit := range page.Hits {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%s\n", hit.Owner, hit.UltimateOwner, hit.Type, hit.Field)
	}
	if page.Next.HasMorePage {
		fmt.Fprintf(c.App.Writer, "next: %s\n", page.Next.Encode())
	}
	return nil
}

func checkCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	// Flags override the configuration only when given.
	checkConfig := db.Config().Check
	if c.IsSet("repair") {
		checkConfig.Repair = c.Bool("repair")
	}
	if c.IsSet("batch-size") {
		checkConfig.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("report-interval") {
		checkConfig.ReportInterval = c.Int("report-interval")
	}
	if c.IsSet("max-retries") {
		checkConfig.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		checkConfig.RetryDelay = c.Duration("retry-delay")
	}

	checker, err := db.NewChecker(&checkConfig, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("invalid check configuration: %w", err)
	}

	report, err := checker.Run(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	fmt.Fprintln(c.App.Writer, report)
	if !report.Clean() && !checkConfig.Repair {
		return errors.New("index has problems; run with --repair to fix them")
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
