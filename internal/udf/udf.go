// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

// Package udf holds the descriptor of a user-defined function as it is handed
// to the compiler by the job submission pipeline.
package udf

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Language identifies the source language of a UDF. The set is closed; adding
// a language means adding a constant here and registering a backend for it.
type Language int

const (
	LanguageNone Language = iota
	LanguageJava
	LanguageScala
	LanguagePython
)

var languageNames = map[Language]string{
	LanguageJava:   "JAVA",
	LanguageScala:  "SCALA",
	LanguagePython: "PYTHON",
}

func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// ParseLanguage converts a case-insensitive language name into a Language.
func ParseLanguage(s string) (Language, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for l, name := range languageNames {
		if name == want {
			return l, nil
		}
	}
	return LanguageNone, fmt.Errorf("unknown function language %q", s)
}

func (l *Language) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseLanguage(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*l = parsed
	return nil
}

func (l Language) MarshalYAML() (interface{}, error) {
	return strings.ToLower(l.String()), nil
}

// UDF describes one user-defined function. The compiler only reads it.
type UDF struct {
	ClassName        string   `yaml:"className"`
	FunctionLanguage Language `yaml:"language"`
	Code             string   `yaml:"code"`
}

// CacheKey is the identity used to decide whether a UDF was already
// compiled: the class name immediately followed by the language name. The
// source code and the job are not part of it, so a class name compiled once
// for a language is treated as compiled for every later job.
func (u *UDF) CacheKey() string {
	return u.ClassName + u.FunctionLanguage.String()
}

func (u *UDF) String() string {
	return fmt.Sprintf("%s(%s)", u.ClassName, u.FunctionLanguage)
}

// JobConfig is the job configuration handed through to backends untouched.
type JobConfig map[string]string
