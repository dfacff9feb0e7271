package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"evidence-rag/internal/models"
)

const textExt = ".txt"

type extractFunc func(filePath string) (string, error)

// extractors for the optional non-plain-text formats, keyed by lower-case extension
var extractors = map[string]extractFunc{
	".md":   parseMarkdown,
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".pptx": parsePPTX,
	".xlsx": parseXLSX,
	".xlsm": parseWorkbook,
	".xltx": parseWorkbook,
}

// Loader reads evidence files from a single directory. Every file becomes
// exactly one SourceDocument; nothing is split.
type Loader struct {
	// ExtendedFormats enables markdown, pdf, office documents and spreadsheets
	// in addition to plain .txt files
	ExtendedFormats bool
}

func NewLoader(extendedFormats bool) *Loader {
	return &Loader{ExtendedFormats: extendedFormats}
}

// LoadDocuments loads the plain-text files of dir
func LoadDocuments(dir string) []models.SourceDocument {
	return (&Loader{}).Load(dir)
}

// Load returns one document per supported file in dir, in directory listing
// order. A missing or empty directory yields no documents, and unreadable
// files are logged and skipped.
func (l *Loader) Load(dir string) []models.SourceDocument {
	if dir == "" {
		log.Error().Msg("Evidence directory is not set")
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Evidence directory does not exist")
		return nil
	}

	var docs []models.SourceDocument
	for _, entry := range entries {
		name := entry.Name()
		extract := l.extractorFor(name)
		if extract == nil {
			continue
		}

		content, err := extract(filepath.Join(dir, name))
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("Error reading file")
			continue
		}
		docs = append(docs, models.SourceDocument{
			Content: content,
			Source:  name,
		})
	}

	if len(docs) == 0 {
		log.Warn().Str("dir", dir).Msg("No evidence files found")
	}
	return docs
}

func (l *Loader) extractorFor(name string) extractFunc {
	if strings.HasSuffix(name, textExt) {
		return parseText
	}
	if !l.ExtendedFormats {
		return nil
	}
	return extractors[strings.ToLower(filepath.Ext(name))]
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
