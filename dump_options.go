package tasmania

import "github.com/nao1215/tasmania/domain/model"

// Type aliases for dump options from model package
type (
	// DumpOptions represents options for exporting tables
	DumpOptions = model.DumpOptions
	// OutputFormat represents the output file format
	OutputFormat = model.OutputFormat
	// CompressionType represents the compression type
	CompressionType = model.CompressionType
	// FileType represents the base format of an input
	FileType = model.FileType
)

// Re-export constants for easier use
const (
	// OutputFormatCSV represents CSV output format
	OutputFormatCSV = model.OutputFormatCSV
	// OutputFormatTSV represents TSV output format
	OutputFormatTSV = model.OutputFormatTSV
	// OutputFormatLTSV represents LTSV output format
	OutputFormatLTSV = model.OutputFormatLTSV
	// OutputFormatParquet represents Parquet output format
	OutputFormatParquet = model.OutputFormatParquet
	// OutputFormatXLSX represents Excel XLSX output format
	OutputFormatXLSX = model.OutputFormatXLSX

	// CompressionNone represents no compression
	CompressionNone = model.CompressionNone
	// CompressionGZ represents gzip compression
	CompressionGZ = model.CompressionGZ
	// CompressionBZ2 represents bzip2 compression
	CompressionBZ2 = model.CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ = model.CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD = model.CompressionZSTD
	// CompressionLZ4 represents lz4 compression
	CompressionLZ4 = model.CompressionLZ4

	// FileTypeCSV represents CSV input
	FileTypeCSV = model.FileTypeCSV
	// FileTypeTSV represents TSV input
	FileTypeTSV = model.FileTypeTSV
	// FileTypeLTSV represents LTSV input
	FileTypeLTSV = model.FileTypeLTSV
	// FileTypeParquet represents Parquet input
	FileTypeParquet = model.FileTypeParquet
	// FileTypeXLSX represents Excel XLSX input
	FileTypeXLSX = model.FileTypeXLSX
)

// NewDumpOptions creates new DumpOptions with default values (CSV format, no compression)
var NewDumpOptions = model.NewDumpOptions
