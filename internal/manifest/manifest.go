// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

// Package manifest reads the YAML file describing one job's UDFs:
//
//	jobId: 42
//	config:
//	  pipeline.classpaths: file:///opt/lib/common.jar
//	udfs:
//	  - className: com.example.Upper
//	    language: java
//	    code: |
//	      package com.example;
//	      ...
//
// UDF order in the file is the compile order.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"gopkg.microglot.org/udfc.go/internal/exc"
	"gopkg.microglot.org/udfc.go/internal/udf"
)

type Manifest struct {
	JobID  int           `yaml:"jobId"`
	Config udf.JobConfig `yaml:"config"`
	UDFs   []*udf.UDF    `yaml:"udfs"`
}

// Decode reads a manifest. Unknown keys are rejected so that a misspelled
// field does not silently drop a UDF's source.
func Decode(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	m := &Manifest{}
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, exc.New(exc.Subject{}, exc.CodeManifest, "manifest is empty")
		}
		return nil, exc.Wrap(exc.Subject{}, exc.CodeManifest, err)
	}
	if m.Config == nil {
		m.Config = udf.JobConfig{}
	}
	return m, nil
}

func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exc.Wrap(exc.Subject{}, exc.CodeManifest, err)
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		message := err.Error()
		var e exc.Exception
		if errors.As(err, &e) {
			message = e.Message()
		}
		return nil, exc.WrapMessage(exc.Subject{}, exc.CodeManifest, fmt.Sprintf("%s: %s", path, message), err)
	}
	return m, nil
}
