package target

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"gopkg.microglot.org/udfc.go/internal/udf"
)

var extensions = map[udf.Language]string{
	udf.LanguageJava:   ".java",
	udf.LanguageScala:  ".scala",
	udf.LanguagePython: ".py",
}

// SourcePath converts a UDF class name into the slash separated path, relative
// to a source root, that the language's toolchain expects the source at.
//
// Every language follows the package layout, so each class name maps to its
// own file: com.example.Upper becomes com/example/Upper.java and the Python
// UDF udfs.text.Upper becomes udfs/text/Upper.py.
func SourcePath(l udf.Language, className string) (string, error) {
	ext, ok := extensions[l]
	if !ok {
		return "", fmt.Errorf("no source layout for language %s", l)
	}
	parts := strings.Split(className, ".")
	for _, part := range parts {
		if !isIdentifier(part) {
			return "", fmt.Errorf("invalid class name %q", className)
		}
	}
	return path.Join(parts...) + ext, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for offset, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && offset > 0:
		default:
			return false
		}
	}
	return true
}
