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


package textidx

import (
	"io"
	"log/slog"

	"github.com/poiesic/textidx/analysis"
	"github.com/poiesic/textidx/config"
	"github.com/poiesic/textidx/ingestion"
	"github.com/poiesic/textidx/maintenance"
	"github.com/poiesic/textidx/search"
	"github.com/poiesic/textidx/storage"
	"github.com/poiesic/textidx/storage/badger"
)

// Database owns an open index store and the analyzer its content goes
// through. Indexers, searchers and checkers built from it share both.
type Database struct {
	backend   *badger.Backend
	indexRepo *badger.IndexRepository
	analyzer  *analysis.Analyzer
	config    *config.Config
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	config   *config.Config
	logger   *slog.Logger
	detector analysis.LanguageDetector
}

// WithConfig sets the database configuration.
// Default is config.DefaultConfig().
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.config = cfg
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithLanguageDetector overrides the detector chosen by the configuration.
func WithLanguageDetector(detector analysis.LanguageDetector) DatabaseOption {
	return func(o *databaseOptions) {
		o.detector = detector
	}
}

// NewDatabase opens the database at filePath. An empty filePath uses the
// configured path; an in-memory configuration ignores it.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}
	cfg := config.DefaultConfig()
	if options.config != nil {
		copied := *options.config
		cfg = &copied
	}
	if filePath != "" {
		cfg.DBPath = filePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	analyzer, err := newAnalyzer(cfg, options.detector, logger)
	if err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(cfg.DBPath, cfg.InMemory, logger)
	if err != nil {
		return nil, err
	}

	indexRepo, err := badger.NewIndexRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:   backend,
		indexRepo: indexRepo,
		analyzer:  analyzer,
		config:    cfg,
		logger:    logger,
	}, nil
}

func newAnalyzer(cfg *config.Config, detector analysis.LanguageDetector, logger *slog.Logger) (*analysis.Analyzer, error) {
	if detector == nil {
		if cfg.Language.Fixed != "" {
			detector = analysis.FixedLanguage(cfg.Language.Fixed)
		} else {
			detector = analysis.NewWhatlangDetector(cfg.Language.MinConfidence)
		}
	}
	stopWords, err := analysis.DefaultStopWords()
	if err != nil {
		return nil, err
	}
	for lang, words := range cfg.StopWords {
		stopWords.Add(lang, words...)
	}
	return analysis.NewAnalyzer(
		analysis.WithLogger(logger),
		analysis.WithLanguageDetector(detector),
		analysis.WithStopWords(stopWords),
	)
}

func (db *Database) Close() error {
	if err := db.indexRepo.Close(); err != nil {
		db.logger.Error("error closing index repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) IndexRepository() storage.IndexRepository {
	return db.indexRepo
}

func (db *Database) Analyzer() *analysis.Analyzer {
	return db.analyzer
}

func (db *Database) Config() *config.Config {
	return db.config
}

// NewIndexer creates an indexer configured from the database config.
// opts are applied after the configured values.
func (db *Database) NewIndexer(opts ...ingestion.Option) (*ingestion.Indexer, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithPoolSize(db.config.Indexer.PoolSize),
		ingestion.WithRetry(db.config.Indexer.MaxAttempts, db.config.Indexer.RetryDelay),
	}
	return ingestion.NewIndexer(db.indexRepo, db.analyzer, append(base, opts...)...)
}

// NewSearcher creates a searcher configured from the database config.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithLogger(db.logger),
		search.WithConcurrency(db.config.Search.Concurrency),
	}
	return search.NewSearcher(db.indexRepo, append(base, opts...)...)
}

// NewChecker creates a consistency checker. A nil checkConfig uses the
// database config.
func (db *Database) NewChecker(checkConfig *maintenance.Config, progress io.Writer) (*maintenance.Checker, error) {
	if checkConfig == nil {
		cfg := db.config.Check
		checkConfig = &cfg
	}
	return maintenance.NewChecker(db.indexRepo, checkConfig, progress, db.logger)
}
