package tasmania

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nao1215/tasmania/domain/model"
	tasmaniadriver "github.com/nao1215/tasmania/driver"
)

// Builder collects named sources, resolves them during Build and opens a
// Session over them.
//
// The typical usage pattern is:
//
//	builder := tasmania.NewBuilder().
//		AddSource("flights", "2015-summary.csv").
//		AddSource("temperature", "gs://bucket/GlobalLandTemperaturesByCountry.csv").
//		AddSource("co2", "s3://bucket/CO2_per_capita.csv.gz")
//	validatedBuilder, err := builder.Build(ctx)
//	if err != nil {
//		return err
//	}
//	defer validatedBuilder.Cleanup() // Remove downloaded objects
//	session, err := validatedBuilder.Open(ctx, tasmania.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer session.Close()
type Builder struct {
	// sources in registration order
	sources []builderSource
	// fetchers by URI scheme
	fetchers map[string]ObjectFetcher
	// closers for fetchers the builder created itself
	closers []io.Closer
	// gcsCredentialsFile is used when a default GCS fetcher is created
	gcsCredentialsFile string
	// s3Region is used when a default S3 fetcher is created
	s3Region string
	// collected contains the driver sources after Build
	collected []tasmaniadriver.Source
	// tempFiles tracks downloaded objects for cleanup
	tempFiles []string
}

// builderSource is one registered input: a URI or a reader.
type builderSource struct {
	name        string
	uri         string
	reader      io.Reader
	fileType    model.FileType
	compression model.CompressionType
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		fetchers: make(map[string]ObjectFetcher),
	}
}

// AddSource registers a table loaded from a local path, a gs://bucket/object
// URI or an s3://bucket/key URI. The format and compression are taken from
// the extension, e.g. "data.csv.gz". An empty name derives the table name
// from the file name.
//
// Returns the builder for method chaining.
func (b *Builder) AddSource(name, uri string) *Builder {
	b.sources = append(b.sources, builderSource{name: name, uri: uri})
	return b
}

// AddReader registers a table read from r in the given format.
//
// Returns the builder for method chaining.
func (b *Builder) AddReader(name string, r io.Reader, fileType FileType) *Builder {
	return b.AddCompressedReader(name, r, fileType, CompressionNone)
}

// AddCompressedReader registers a table read from a compressed stream.
//
// Returns the builder for method chaining.
func (b *Builder) AddCompressedReader(name string, r io.Reader, fileType FileType, compression CompressionType) *Builder {
	b.sources = append(b.sources, builderSource{
		name:        name,
		reader:      r,
		fileType:    fileType,
		compression: compression,
	})
	return b
}

// WithFetcher sets the fetcher used for URIs with the given scheme,
// replacing the built-in GCS or S3 client.
//
// Returns the builder for method chaining.
func (b *Builder) WithFetcher(scheme string, fetcher ObjectFetcher) *Builder {
	b.fetchers[scheme] = fetcher
	return b
}

// WithGCSCredentialsFile sets the service account file for the built-in GCS client.
//
// Returns the builder for method chaining.
func (b *Builder) WithGCSCredentialsFile(path string) *Builder {
	b.gcsCredentialsFile = path
	return b
}

// WithS3Region sets the region for the built-in S3 client.
//
// Returns the builder for method chaining.
func (b *Builder) WithS3Region(region string) *Builder {
	b.s3Region = region
	return b
}

// Build validates every source and prepares the builder for Open:
//
// 1. Local paths must exist and carry a supported extension
// 2. Remote objects are downloaded into temporary files
// 3. Readers are parsed into tables
//
// Any failure aborts the build, removes what was downloaded so far and is
// returned; ErrSourceNotFound and ErrUnsupportedFormat can be matched with errors.Is.
//
// Returns the same builder instance for method chaining, or an error if validation fails.
func (b *Builder) Build(ctx context.Context) (*Builder, error) {
	if len(b.sources) == 0 {
		return nil, ErrNoSources
	}

	b.collected = make([]tasmaniadriver.Source, 0, len(b.sources))
	for _, src := range b.sources {
		if err := ctx.Err(); err != nil {
			return nil, b.failBuild(err)
		}
		collected, err := b.resolve(ctx, src)
		if err != nil {
			return nil, b.failBuild(err)
		}
		b.collected = append(b.collected, collected)
	}
	return b, nil
}

// failBuild removes temporary files and joins any cleanup error with err.
func (b *Builder) failBuild(err error) error {
	b.collected = nil
	if cleanupErr := b.cleanup(); cleanupErr != nil {
		return errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
	}
	return err
}

// resolve turns a registered source into a driver source.
func (b *Builder) resolve(ctx context.Context, src builderSource) (tasmaniadriver.Source, error) {
	if src.reader != nil {
		name := src.name
		if name == "" {
			return tasmaniadriver.Source{}, fmt.Errorf("%w: reader sources need a table name", tasmaniadriver.ErrInvalidSource)
		}
		table, err := model.ParseReader(ctx, src.reader, name, src.fileType, src.compression)
		if err != nil {
			return tasmaniadriver.Source{}, NewErrorContext("parse", "").WithTable(name).Error(err)
		}
		return tasmaniadriver.Source{Name: name, Table: table}, nil
	}

	uri, err := parseSourceURI(src.uri)
	if err != nil {
		return tasmaniadriver.Source{}, err
	}
	if !model.IsSupportedFile(uri.name()) {
		return tasmaniadriver.Source{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, uri)
	}

	name := src.name
	if name == "" {
		name = model.TableFromFilePath(uri.name())
	}

	if !uri.isRemote() {
		info, err := os.Stat(uri.path)
		if err != nil {
			if os.IsNotExist(err) {
				return tasmaniadriver.Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, uri.path)
			}
			return tasmaniadriver.Source{}, fmt.Errorf("failed to stat path %s: %w", uri.path, err)
		}
		if info.IsDir() {
			return tasmaniadriver.Source{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, uri.path)
		}
		return tasmaniadriver.Source{Name: name, Path: uri.path}, nil
	}

	fetcher, err := b.fetcher(ctx, uri.scheme)
	if err != nil {
		return tasmaniadriver.Source{}, err
	}
	path, err := b.downloadToTemp(ctx, fetcher, uri)
	if err != nil {
		return tasmaniadriver.Source{}, err
	}
	return tasmaniadriver.Source{Name: name, Path: path}, nil
}

// fetcher returns the fetcher for scheme, creating the built-in client on first use.
func (b *Builder) fetcher(ctx context.Context, scheme string) (ObjectFetcher, error) {
	if f, ok := b.fetchers[scheme]; ok {
		return f, nil
	}

	switch scheme {
	case SchemeGCS:
		f, err := NewGCSFetcher(ctx, b.gcsCredentialsFile)
		if err != nil {
			return nil, err
		}
		b.fetchers[scheme] = f
		b.closers = append(b.closers, f)
		return f, nil
	case SchemeS3:
		f, err := NewS3Fetcher(ctx, b.s3Region)
		if err != nil {
			return nil, err
		}
		b.fetchers[scheme] = f
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// downloadToTemp copies a remote object into a temporary file that keeps the
// object's extensions, so format and compression detection still apply.
func (b *Builder) downloadToTemp(ctx context.Context, fetcher ObjectFetcher, uri sourceURI) (string, error) {
	ext := model.NewFile(uri.key).Type().Extension() + model.DetectCompressionType(uri.key).Extension()

	tempFile, err := os.CreateTemp("", "tasmania-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	// Track before writing so a failed download is removed too
	b.tempFiles = append(b.tempFiles, tempFile.Name())

	if err := fetcher.Fetch(ctx, uri.bucket, uri.key, tempFile); err != nil {
		return "", err
	}
	return filepath.Clean(tempFile.Name()), nil
}

// Open creates an in-memory database, loads every source built by Build
// into it and returns the session over it. It must be called after a
// successful Build.
//
// Table names are the registered names, or the file name without
// extensions: "data.tsv.gz" becomes table "data".
//
// The caller is responsible for closing the session and calling Cleanup().
func (b *Builder) Open(ctx context.Context, opts ...SessionOption) (*Session, error) {
	if len(b.collected) == 0 {
		return nil, ErrNotBuilt
	}

	s := newSession(opts...)
	connector, err := tasmaniadriver.NewConnector(b.collected, tasmaniadriver.WithLoadObserver(s.observeLoad))
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	// Derived tables only exist on the connection that created them
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		var allErrors []error
		allErrors = append(allErrors, err)
		if closeErr := db.Close(); closeErr != nil {
			allErrors = append(allErrors, fmt.Errorf("failed to close database: %w", closeErr))
		}
		return nil, errors.Join(allErrors...)
	}

	s.db = db
	s.logger.Debug("session opened", zap.Int("sources", len(b.collected)))
	return s, nil
}

// cleanup removes temporary files and returns any errors
func (b *Builder) cleanup() error {
	var errs []error
	for _, path := range b.tempFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove temp file %s: %w", path, err))
		}
	}
	b.tempFiles = nil
	return errors.Join(errs...)
}

// Cleanup removes downloaded objects and closes the cloud clients the
// builder created. It's safe to call this multiple times.
// Multiple errors are joined together using errors.Join.
func (b *Builder) Cleanup() error {
	errs := []error{b.cleanup()}
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client: %w", err))
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
