// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

package exc

import (
	"errors"
	"fmt"

	"gopkg.microglot.org/udfc.go/internal/udf"
)

type Exception interface {
	error
	Code() string
	Message() string
	Subject() Subject
}

// Subject identifies the UDF an exception is about. It is zero when the
// failure happened before a UDF could be identified, such as a nil
// descriptor.
type Subject struct {
	Language  udf.Language
	ClassName string
}

// SubjectOf returns the Subject for u, tolerating nil.
func SubjectOf(u *udf.UDF) Subject {
	if u == nil {
		return Subject{}
	}
	return Subject{Language: u.FunctionLanguage, ClassName: u.ClassName}
}

func (s Subject) IsZero() bool {
	return s == Subject{}
}

func (s Subject) String() string {
	return fmt.Sprintf("codeLanguage:%s, className:%s", s.Language, s.ClassName)
}

type exc struct {
	code    string
	message string
	subject Subject
}

func (e *exc) Error() string {
	if e.subject.IsZero() {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s -- %s: %s", e.subject, e.code, e.message)
}

func (e *exc) Code() string {
	return e.code
}

func (e *exc) Message() string {
	return e.message
}

func (e *exc) Subject() Subject {
	return e.subject
}

type excUnwrap struct {
	Exception
	cause error
}

func (e *excUnwrap) Unwrap() error {
	return e.cause
}

func New(subject Subject, code string, message string) Exception {
	return &exc{
		subject: subject,
		message: message,
		code:    code,
	}
}

func Wrap(subject Subject, code string, err error) Exception {
	if err == nil {
		return nil
	}
	if e, ok := err.(Exception); ok {
		return &excUnwrap{
			Exception: New(subject, code, e.Message()),
			cause:     e,
		}
	}
	return &excUnwrap{
		cause:     err,
		Exception: New(subject, code, err.Error()),
	}
}

// WrapMessage is Wrap with a message of the caller's choosing rather than the
// message of err.
func WrapMessage(subject Subject, code string, message string, err error) Exception {
	if err == nil {
		return nil
	}
	return &excUnwrap{
		cause:     err,
		Exception: New(subject, code, message),
	}
}

func WrapUnknown(subject Subject, err error) Exception {
	return Wrap(subject, CodeUnknownFatal, err)
}

// Is reports whether any Exception in err's chain carries the given code.
func Is(err error, code string) bool {
	for err != nil {
		if e, ok := err.(Exception); ok && e.Code() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
