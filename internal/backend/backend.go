// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

// Package backend provides the default compilers for each supported UDF
// language. Each one writes the UDF source into the job's workspace and runs
// the language toolchain over it.
//
// Workspace layout, per job and language:
//
//	<root>/<jobID>/<language>/src/...      UDF sources
//	<root>/<jobID>/<language>/classes/...  compiled output (Java and Scala)
package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gopkg.microglot.org/udfc.go/internal/compiler"
	"gopkg.microglot.org/udfc.go/internal/exc"
	"gopkg.microglot.org/udfc.go/internal/fs"
	"gopkg.microglot.org/udfc.go/internal/target"
	"gopkg.microglot.org/udfc.go/internal/udf"
)

// Job configuration keys read by the default backends. They mirror the keys a
// Flink job configuration already carries.
const (
	ConfClasspaths       = "pipeline.classpaths"
	ConfPythonExecutable = "python.executable"
)

// Tools names the toolchain executables. Empty fields fall back to the
// DefaultTools value.
type Tools struct {
	Javac  string
	Scalac string
	Python string
}

func DefaultTools() Tools {
	return Tools{
		Javac:  "javac",
		Scalac: "scalac",
		Python: "python3",
	}
}

// Defaults returns one backend per supported language, all writing into ws.
func Defaults(ws fs.FileSystem, tools Tools, logger *zap.Logger) []compiler.Backend {
	d := DefaultTools()
	if tools.Javac == "" {
		tools.Javac = d.Javac
	}
	if tools.Scalac == "" {
		tools.Scalac = d.Scalac
	}
	if tools.Python == "" {
		tools.Python = d.Python
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return []compiler.Backend{
		NewJava(ws, tools.Javac, logger),
		NewScala(ws, tools.Scalac, logger),
		NewPython(ws, tools.Python, logger),
	}
}

// toolchain is the shared shape of every default backend: lay the source out
// in the workspace, then run one command over it. It holds no mutable state so
// a single value serves concurrent compiles.
type toolchain struct {
	language udf.Language
	ws       fs.FileSystem
	command  string
	logger   *zap.Logger
	// args builds the command line. src and out are absolute local paths.
	args func(conf udf.JobConfig, src string, out string) []string
	// executable may override command from the job configuration.
	executable func(conf udf.JobConfig) string
}

func (self *toolchain) Language() udf.Language {
	return self.language
}

func (self *toolchain) Compile(ctx context.Context, u *udf.UDF, conf udf.JobConfig, jobID int) error {
	subject := exc.SubjectOf(u)
	rel, err := target.SourcePath(self.language, u.ClassName)
	if err != nil {
		return exc.Wrap(subject, exc.CodeValidation, err)
	}
	jobDir := path.Join(strconv.Itoa(jobID), strings.ToLower(self.language.String()))
	src := path.Join(jobDir, "src", rel)
	out := path.Join(jobDir, "classes")
	if err := self.ws.Write(ctx, src, u.Code); err != nil {
		return err
	}
	if err := self.ws.MkdirAll(ctx, out); err != nil {
		return err
	}

	command := self.command
	if self.executable != nil {
		if v := self.executable(conf); v != "" {
			command = v
		}
	}
	args := self.args(conf, self.ws.Abs(src), self.ws.Abs(out))
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = self.ws.Abs(jobDir)
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	self.logger.Debug("udf toolchain finished",
		zap.String("language", self.language.String()),
		zap.String("class", u.ClassName),
		zap.String("command", command),
		zap.Strings("args", args),
		zap.Duration("elapsed", time.Since(start)),
		zap.ByteString("output", output.Bytes()),
	)
	if runErr != nil {
		detail := strings.TrimSpace(output.String())
		if detail == "" {
			return fmt.Errorf("%s: %w", command, runErr)
		}
		return fmt.Errorf("%s: %w: %s", command, runErr, detail)
	}
	return nil
}

func classpath(conf udf.JobConfig) string {
	v := strings.TrimSpace(conf[ConfClasspaths])
	if v == "" {
		return ""
	}
	entries := strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' })
	for offset, entry := range entries {
		entries[offset] = strings.TrimPrefix(strings.TrimSpace(entry), "file://")
	}
	return strings.Join(entries, classpathSeparator)
}
