package helper

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// namespace for record ids; any fixed UUID works as long as it never changes
var recordNamespace = uuid.MustParse("5b0e1f8c-3f4b-4b8e-9a57-0c6d2f1a9e21")

// RecordID derives a stable id for the i-th record of a source file, so that
// re-ingesting the same corpus produces the same ids
func RecordID(source string, i int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s#%d", source, i))).String()
}

// CreateFolder creates path and any missing parents
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// FolderExists reports whether path exists and is a directory
func FolderExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
