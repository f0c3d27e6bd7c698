// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"os"

	"go.uber.org/zap"

	"gopkg.microglot.org/udfc.go/internal/compiler"
	"gopkg.microglot.org/udfc.go/internal/fs"
	"gopkg.microglot.org/udfc.go/internal/udf"
)

const classpathSeparator = string(os.PathListSeparator)

// NewJava compiles Java UDFs with javac into the job's classes directory.
func NewJava(ws fs.FileSystem, javac string, logger *zap.Logger) compiler.Backend {
	return &toolchain{
		language: udf.LanguageJava,
		ws:       ws,
		command:  javac,
		logger:   logger,
		args:     jvmArgs,
	}
}

// NewScala compiles Scala UDFs with scalac into the job's classes directory.
func NewScala(ws fs.FileSystem, scalac string, logger *zap.Logger) compiler.Backend {
	return &toolchain{
		language: udf.LanguageScala,
		ws:       ws,
		command:  scalac,
		logger:   logger,
		args:     jvmArgs,
	}
}

// NewPython byte-compiles Python UDFs. The interpreter named by the job's
// python.executable setting takes precedence over the configured one.
func NewPython(ws fs.FileSystem, python string, logger *zap.Logger) compiler.Backend {
	return &toolchain{
		language: udf.LanguagePython,
		ws:       ws,
		command:  python,
		logger:   logger,
		args: func(conf udf.JobConfig, src string, out string) []string {
			return []string{"-m", "py_compile", src}
		},
		executable: func(conf udf.JobConfig) string {
			return conf[ConfPythonExecutable]
		},
	}
}

func jvmArgs(conf udf.JobConfig, src string, out string) []string {
	args := []string{"-d", out}
	if cp := classpath(conf); cp != "" {
		args = append(args, "-classpath", cp)
	}
	return append(args, src)
}
